package realtime

import (
	"context"
	"fmt"

	"github.com/campuslive/campuslive/internal/channel"
	"github.com/campuslive/campuslive/internal/models"
	"github.com/campuslive/campuslive/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatService persists inbound messages and fans the canonical form out
// to the channel. Persist-then-broadcast, in that order: the insert is
// the serialization point that fixes message order for everyone, and a
// failed insert means nobody sees the message — no ghost deliveries.
type ChatService struct {
	router      *Router
	messages    repository.MessageRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
	logger      *zap.Logger
}

func NewChatService(
	router *Router,
	messages repository.MessageRepository,
	memberships repository.MembershipRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) *ChatService {
	return &ChatService{
		router:      router,
		messages:    messages,
		memberships: memberships,
		users:       users,
		logger:      logger,
	}
}

// Authorize reports whether the identity may join the chat channel.
// Admins pass unconditionally (supervision); everyone else must be
// enrolled in the room or bubble.
func (s *ChatService) Authorize(ctx context.Context, id models.Identity, key channel.Key) (bool, error) {
	if !key.IsChat() {
		return false, fmt.Errorf("channel %s is not a chat scope", key)
	}
	if id.Role == models.RoleAdmin {
		return true, nil
	}
	ok, err := s.memberships.IsMember(ctx, key, id.ID)
	if err != nil {
		return false, fmt.Errorf("authorize join: %w", err)
	}
	return ok, nil
}

// Send validates, persists, and broadcasts one chat message. The
// returned message carries the server-assigned id and timestamp.
//
// The sender receives its own echo too — that is what keeps a user's
// other devices consistent without a separate sync path.
func (s *ChatService) Send(ctx context.Context, sender models.Identity, key channel.Key, text string) (*models.Message, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is empty")
	}
	if !key.IsChat() {
		return nil, fmt.Errorf("channel %s is not a chat scope", key)
	}

	msg, err := s.messages.Create(ctx, key, sender.ID, text)
	if err != nil {
		// The whole send fails visibly to the sender. No retry here —
		// retries are a client decision.
		return nil, fmt.Errorf("persist message: %w", err)
	}

	ts := msg.CreatedAt
	s.router.broadcast(key, Envelope{
		Type:       EventMessage,
		Channel:    key.String(),
		Text:       msg.Text,
		SenderID:   msg.SenderID,
		SenderName: s.displayName(ctx, sender),
		Timestamp:  &ts,
	}, uuid.Nil)

	return msg, nil
}

// displayName resolves the sender's current name from the user store,
// falling back to the name baked into the token if the lookup fails.
func (s *ChatService) displayName(ctx context.Context, sender models.Identity) string {
	user, err := s.users.GetByID(ctx, sender.ID)
	if err != nil {
		s.logger.Warn("sender lookup failed; using token name",
			zap.Int64("user_id", sender.ID),
			zap.Error(err),
		)
		return sender.Name
	}
	if user == nil {
		return sender.Name
	}
	return user.Name
}
