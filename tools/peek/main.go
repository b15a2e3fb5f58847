// Command peek inspects the chat pipeline's RabbitMQ queues through the
// management API without consuming anything. It knows the two queue
// payloads (chat requests and assistant replies) and renders them as
// one summary line each; unknown queues fall back to pretty-printed
// JSON.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"hearth/internal/assistant/consumer"
	"hearth/internal/assistant/publisher"
	gwpub "hearth/internal/gateway/publisher"
)

const (
	defaultRabbitMQAPI = "http://localhost:15672/api"
	defaultUser        = "hearth"
	defaultPass        = "hearth_dev"
)

type Message struct {
	Payload         string `json:"payload"`
	PayloadEncoding string `json:"payload_encoding"`
	Redelivered     bool   `json:"redelivered"`
}

type QueueInfo struct {
	Name     string `json:"name"`
	Messages int    `json:"messages"`
	State    string `json:"state"`
}

func main() {
	listCmd := flag.Bool("list", false, "List all queues")
	queueName := flag.String("queue", "", "Queue to peek (chat.requests, chat.replies)")
	count := flag.Int("count", 10, "Number of messages to peek")
	raw := flag.Bool("raw", false, "Dump payloads as JSON instead of summaries")
	flag.Parse()

	apiURL := getEnvOrDefault("RABBITMQ_API", defaultRabbitMQAPI)
	user := getEnvOrDefault("RABBITMQ_USER", defaultUser)
	pass := getEnvOrDefault("RABBITMQ_PASS", defaultPass)

	client := &rabbitClient{apiURL: apiURL, user: user, pass: pass}

	if *listCmd {
		if err := client.listQueues(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *queueName == "" {
		fmt.Println("Usage:")
		fmt.Println("  peek -list                    List all queues")
		fmt.Println("  peek -queue chat.requests     Summarize pending chat requests")
		fmt.Println("  peek -queue chat.replies -raw Dump reply payloads as JSON")
		fmt.Println("")
		fmt.Println("Queues:")
		client.listQueues()
		return
	}

	if err := client.peekMessages(*queueName, *count, *raw); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rabbitClient struct {
	apiURL string
	user   string
	pass   string
}

func (c *rabbitClient) listQueues() error {
	req, err := http.NewRequest("GET", c.apiURL+"/queues", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.pass)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var queues []QueueInfo
	if err := json.NewDecoder(resp.Body).Decode(&queues); err != nil {
		return err
	}

	fmt.Printf("%-25s %s\n", "QUEUE", "MESSAGES")
	fmt.Println(strings.Repeat("-", 35))
	for _, q := range queues {
		fmt.Printf("%-25s %d\n", q.Name, q.Messages)
	}
	return nil
}

func (c *rabbitClient) peekMessages(queue string, count int, raw bool) error {
	// ack_requeue_true peeks without consuming.
	body := fmt.Sprintf(`{"count":%d,"ackmode":"ack_requeue_true","encoding":"auto"}`, count)

	url := fmt.Sprintf("%s/queues/%%2F/%s/get", c.apiURL, queue)
	req, err := http.NewRequest("POST", url, bytes.NewBufferString(body))
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.user, c.pass)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("queue '%s' not found", queue)
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return err
	}

	if len(messages) == 0 {
		fmt.Printf("Queue '%s' is empty\n", queue)
		return nil
	}

	fmt.Printf("Queue: %s (%d messages shown)\n", queue, len(messages))
	fmt.Println(strings.Repeat("=", 60))

	for i, msg := range messages {
		mark := ""
		if msg.Redelivered {
			mark = " (redelivered)"
		}
		fmt.Printf("[%d]%s %s\n", i+1, mark, render(queue, []byte(msg.Payload), raw))
	}
	return nil
}

// render summarizes a payload according to which queue it came from.
func render(queue string, payload []byte, raw bool) string {
	if raw {
		return prettyJSON(payload)
	}
	switch queue {
	case gwpub.ChatRequestsQueue:
		var req consumer.ChatRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return prettyJSON(payload)
		}
		return summarizeRequest(&req)
	case publisher.RepliesQueue:
		var reply publisher.ChatReply
		if err := json.Unmarshal(payload, &reply); err != nil {
			return prettyJSON(payload)
		}
		return summarizeReply(&reply)
	default:
		return prettyJSON(payload)
	}
}

func summarizeRequest(req *consumer.ChatRequest) string {
	kind := req.Kind
	if kind == "" {
		kind = "message"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-8s conv=%s member=%s family=%s channel=%s",
		kind, req.ConversationID, req.MemberID, req.FamilyID, req.Channel)
	switch kind {
	case "select":
		fmt.Fprintf(&sb, " %s[%d] selected=%v", req.Collection, req.Index, req.Selected == nil || *req.Selected)
	case "edit":
		fmt.Fprintf(&sb, " %s[%d].%s=%q", req.Collection, req.Index, req.Field, req.Value)
	default:
		if req.Text != "" {
			fmt.Fprintf(&sb, " text=%q", truncate(req.Text, 60))
		}
	}
	return sb.String()
}

func summarizeReply(reply *publisher.ChatReply) string {
	action := ""
	if reply.HasAction {
		action = " [pending action]"
	}
	return fmt.Sprintf("conv=%s member=%s channel=%s%s message=%q",
		reply.ConversationID, reply.MemberID, reply.Channel, action, truncate(reply.Message, 60))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func prettyJSON(payload []byte) string {
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return string(payload)
	}
	pretty, _ := json.MarshalIndent(decoded, "", "  ")
	return "\n" + string(pretty)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
