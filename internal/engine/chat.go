package engine

import (
	"strings"
	"time"

	"trackline/internal/domain"
	"trackline/internal/events"
)

// addComment appends a comment to a work item's thread. Any active member,
// including the department head, may comment.
func (e Engine) addComment(c *domain.Container, w *domain.WorkItem, actor Actor, message string) (events.EventPayload, error) {
	if _, err := requireActiveMember(c, actor, "add-comment"); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ValidationError{Field: "message", Reason: "required"}
	}
	w.Comments = append(w.Comments, domain.Comment{
		UserID:    actor.UserID,
		UserName:  actor.Name,
		Message:   message,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	})
	e.touch(w)
	return events.EventPayload{"comment_count": len(w.Comments)}, nil
}

// addChatMessage appends to the container-level chat log. Attachment refs
// come from the store; message text may be empty when attachments are
// present.
func (e Engine) addChatMessage(c *domain.Container, actor Actor, message string, refs []string) (events.EventPayload, error) {
	if _, err := requireActiveMember(c, actor, "add-chat-message"); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" && len(refs) == 0 {
		return nil, domain.ValidationError{Field: "message", Reason: "message or attachments required"}
	}
	c.Chat = append(c.Chat, domain.ChatMessage{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		Message:     message,
		Attachments: refs,
		Timestamp:   e.now().UTC().Format(time.RFC3339),
	})
	return events.EventPayload{"attachments": len(refs)}, nil
}
