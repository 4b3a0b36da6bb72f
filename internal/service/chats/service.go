// Package chats provisions and serves message threads: per-ride threads are
// created by the ride service; this package owns the private and driver-group
// threads plus posting and read receipts.
package chats

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"campuscart/internal/domain/chat"
	"campuscart/internal/domain/user"
	"campuscart/internal/events"
	"campuscart/internal/general/contracts"
	"campuscart/internal/general/logger"
	"campuscart/internal/general/metrics"
	"campuscart/internal/ports"
)

type Service struct {
	log     *logger.Logger
	uow     ports.UnitOfWork
	users   ports.UserRepository
	threads ports.ThreadRepository
	bus     *events.Bus
	stats   *metrics.Metrics
}

var _ ports.ChatService = (*Service)(nil)

func New(
	log *logger.Logger,
	uow ports.UnitOfWork,
	users ports.UserRepository,
	threads ports.ThreadRepository,
	bus *events.Bus,
	stats *metrics.Metrics,
) *Service {
	return &Service{log: log, uow: uow, users: users, threads: threads, bus: bus, stats: stats}
}

// DriverGroupThread returns the fleet-wide group thread. It is created
// lazily on first use, seeded with every driver and dispatcher; later hires
// are admitted when they first ask for it. Riders are refused.
func (service *Service) DriverGroupThread(ctx context.Context, actorID string, role user.Role) (*chat.Thread, error) {
	if role.IsRider() {
		return nil, ports.ErrForbidden
	}

	thread, err := service.threads.GetSingleton(ctx, chat.KindDriverGroup)
	if errors.Is(err, chat.ErrNotFound) {
		thread, err = service.createDriverGroup(ctx)
	}
	if err != nil {
		return nil, err
	}

	if !thread.HasParticipant(actorID) {
		if err := service.threads.AddParticipant(ctx, thread.ID, actorID); err != nil {
			return nil, err
		}
		thread.AddParticipant(actorID)
	}
	return thread, nil
}

func (service *Service) createDriverGroup(ctx context.Context) (*chat.Thread, error) {
	staff, err := service.users.ListByRoles(ctx, user.RoleDriver, user.RoleDispatcher)
	if err != nil {
		return nil, err
	}
	participants := make([]string, 0, len(staff))
	for _, member := range staff {
		participants = append(participants, member.ID)
	}

	thread, err := chat.NewThread(uuid.NewString(), chat.KindDriverGroup, participants, "")
	if err != nil {
		return nil, err
	}
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		// the singleton may have appeared while we were building ours
		if existing, err := service.threads.GetSingleton(ctx, chat.KindDriverGroup); err == nil {
			thread = existing
			return nil
		} else if !errors.Is(err, chat.ErrNotFound) {
			return err
		}
		return service.threads.Create(ctx, thread)
	})
	if err != nil {
		return nil, err
	}
	service.log.Info(ctx, "driver_group_created", "driver group thread provisioned", map[string]any{
		"thread_id":    thread.ID,
		"participants": len(participants),
	})
	return thread, nil
}

// PrivateThread finds or creates the one-to-one thread between the caller
// and recipient.
func (service *Service) PrivateThread(ctx context.Context, actorID, recipientID string) (*chat.Thread, error) {
	if actorID == recipientID {
		return nil, ports.ErrForbidden
	}
	if _, err := service.users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	thread, err := service.threads.FindPrivate(ctx, actorID, recipientID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, chat.ErrNotFound) {
		return nil, err
	}

	thread, err = chat.NewThread(uuid.NewString(), chat.KindPrivate, []string{actorID, recipientID}, "")
	if err != nil {
		return nil, err
	}
	if err := service.threads.Create(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// ListThreads returns the caller's threads, most recently active first.
func (service *Service) ListThreads(ctx context.Context, actorID string) ([]*chat.Thread, error) {
	return service.threads.ListForUser(ctx, actorID)
}

// GetThread returns a thread the caller participates in.
func (service *Service) GetThread(ctx context.Context, threadID, actorID string) (*chat.Thread, error) {
	thread, err := service.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(actorID) {
		return nil, ports.ErrForbidden
	}
	return thread, nil
}

// Post appends a message to the thread and announces it on the bus.
func (service *Service) Post(ctx context.Context, threadID, senderID, body string) (*chat.Message, error) {
	thread, err := service.threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	msg, err := thread.Post(uuid.NewString(), senderID, body)
	if err != nil {
		return nil, err
	}
	if err := service.threads.AppendMessage(ctx, threadID, msg); err != nil {
		return nil, err
	}

	service.stats.MessagesPosted.Inc()
	service.bus.Publish(events.Event{
		Kind:     events.KindMessagePosted,
		ThreadID: threadID,
		Payload: contracts.MessagePostedMessage{
			ThreadID:   threadID,
			ThreadKind: thread.Kind.String(),
			MessageID:  msg.ID,
			SenderID:   msg.SenderID,
			Body:       msg.Body,
			SentAt:     msg.SentAt,
		},
	})
	service.log.Debug(ctx, "message_posted", "chat message appended", map[string]any{
		"thread_id": threadID,
		"sender_id": senderID,
	})
	return &msg, nil
}

// MarkRead flags everything not written by the reader as read.
func (service *Service) MarkRead(ctx context.Context, threadID, readerID string) (int, error) {
	thread, err := service.threads.GetByID(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if !thread.HasParticipant(readerID) {
		return 0, ports.ErrForbidden
	}
	return service.threads.MarkRead(ctx, threadID, readerID)
}
