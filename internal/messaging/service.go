// Package messaging manages discussion threads attached to a negotiation
// context. Each (OCG, firm) pair gets at most one thread, created lazily
// on first message.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"justicebid/api/internal/store"
)

const (
	// ContextNegotiation scopes a thread to one firm's negotiation of one OCG.
	ContextNegotiation = "negotiation"
	// ContextOCG scopes a thread to an OCG as a whole (client-side notes).
	ContextOCG = "ocg"
)

type threadStore interface {
	EnsureThread(ctx context.Context, contextType, contextID string) (*store.MessageThread, error)
	GetThreadByContext(ctx context.Context, contextType, contextID string) (*store.MessageThread, error)
	InsertMessage(ctx context.Context, msg store.Message) (*store.Message, error)
	ListMessages(ctx context.Context, threadID string) ([]store.Message, error)
}

// Service posts and reads messages on negotiation threads.
type Service struct {
	store threadStore
}

func NewService(s threadStore) *Service {
	return &Service{store: s}
}

// NegotiationContextID builds the context key for a firm's negotiation
// of an OCG. The separator cannot appear in IDs generated by util.NewID.
func NegotiationContextID(ocgID, firmID string) string {
	return ocgID + ":" + firmID
}

// PostMessage appends a message to the thread for the given context,
// creating the thread on first use.
func (s *Service) PostMessage(ctx context.Context, contextType, contextID, senderID string, recipientIDs []string, content string) (*store.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is required")
	}
	if senderID == "" {
		return nil, fmt.Errorf("sender is required")
	}

	th, err := s.store.EnsureThread(ctx, contextType, contextID)
	if err != nil {
		return nil, err
	}
	return s.store.InsertMessage(ctx, store.Message{
		ThreadID:     th.ID,
		SenderID:     senderID,
		RecipientIDs: recipientIDs,
		Content:      content,
	})
}

// Thread returns the thread for the given context, or nil when no
// message has been posted to it yet.
func (s *Service) Thread(ctx context.Context, contextType, contextID string) (*store.MessageThread, error) {
	return s.store.GetThreadByContext(ctx, contextType, contextID)
}

// History returns all messages for the given context in posting order.
// A context with no thread yet returns an empty slice.
func (s *Service) History(ctx context.Context, contextType, contextID string) ([]store.Message, error) {
	th, err := s.store.GetThreadByContext(ctx, contextType, contextID)
	if err != nil {
		return nil, err
	}
	if th == nil {
		return []store.Message{}, nil
	}
	msgs, err := s.store.ListMessages(ctx, th.ID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	return msgs, nil
}
