package prompt

import "hearth/internal/assistant/action"

// actionTypes is every tag the completion endpoint may return.
var actionTypes = []string{
	string(action.TypeProposeTask),
	string(action.TypeProposeEvent),
	string(action.TypeProposeEvents),
	string(action.TypeProposeEventsChat),
	string(action.TypeProposeWishlistItem),
	string(action.TypeProposeWishlistItems),
	string(action.TypeShowWishlist),
	string(action.TypeShowUpcomingEvents),
	string(action.TypeShowTasks),
	string(action.TypeUpdateTaskStatus),
	string(action.TypeConvertEventToTask),
	string(action.TypeConvertTaskToEvent),
	string(action.TypeClarify),
	string(action.TypeChat),
}

// ResponseSchema returns the JSON Schema every completion response must
// conform to. It is a superset schema: the only required property is
// action_type; payload completeness is judged by application code, not
// here.
func ResponseSchema() map[string]interface{} {
	str := map[string]interface{}{"type": "string"}
	strList := map[string]interface{}{
		"type":  "array",
		"items": str,
	}

	eventProps := map[string]interface{}{
		"title":             str,
		"start_time":        str,
		"end_time":          str,
		"family_member_ids": strList,
		"family_id":         str,
		"location":          str,
		"category":          str,
	}
	wishlistProps := map[string]interface{}{
		"name":             str,
		"url":              str,
		"family_member_id": str,
	}

	payloadProps := map[string]interface{}{
		// task
		"title":       str,
		"description": str,
		"assigned_to": strList,
		"due_date":    str,
		"family_id":   str,
		"status":      str,
		// event
		"start_time":        str,
		"end_time":          str,
		"family_member_ids": strList,
		"location":          str,
		"category":          str,
		// wishlist
		"name":             str,
		"url":              str,
		"family_member_id": str,
		// batches
		"events": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":                 "object",
				"properties":           eventProps,
				"additionalProperties": false,
			},
		},
		"items": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":                 "object",
				"properties":           wishlistProps,
				"additionalProperties": false,
			},
		},
		// status update / conversions
		"id":       str,
		"event_id": str,
		"task_id":  str,
		// conversational
		"clarification_question": str,
		"response":               str,
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action_type": map[string]interface{}{
				"type": "string",
				"enum": actionTypes,
			},
			"action_payload": map[string]interface{}{
				"type":                 "object",
				"properties":           payloadProps,
				"additionalProperties": false,
			},
			"confirmation_message": str,
		},
		"required":             []string{"action_type"},
		"additionalProperties": false,
	}
}
