package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/assistant-billing/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) AppendMessage(ctx context.Context, username, role, content string) error {
	return m.Called(ctx, username, role, content).Error(0)
}

func (m *MockRepository) ListMessages(ctx context.Context, username string, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, username, limit)
	msgs, _ := args.Get(0).([]*models.Message)
	return msgs, args.Error(1)
}

// memoryRepository хранит сообщения в памяти для проверок порядка.
type memoryRepository struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (r *memoryRepository) AppendMessage(_ context.Context, username, role, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, &models.Message{ID: int64(len(r.msgs) + 1), Username: username, Role: role, Content: content})
	return nil
}

func (r *memoryRepository) ListMessages(_ context.Context, username string, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for _, m := range r.msgs {
		if m.Username == username {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLogger_LogTurn(t *testing.T) {
	repo := &memoryRepository{}
	logger := New(newNoopLogger(), repo)

	require.NoError(t, logger.LogTurn(context.Background(), "alice", "hi", "hello"))

	msgs, err := logger.History(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestLogger_LogTurn_Failures(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name       string
		setupMocks func(*MockRepository)
	}{
		{
			name: "user message fails, assistant message not attempted",
			setupMocks: func(r *MockRepository) {
				r.On("AppendMessage", mock.Anything, "alice", models.RoleUser, "hi").Return(dbErr).Once()
			},
		},
		{
			name: "assistant message fails, user message is not rolled back",
			setupMocks: func(r *MockRepository) {
				r.On("AppendMessage", mock.Anything, "alice", models.RoleUser, "hi").Return(nil).Once()
				r.On("AppendMessage", mock.Anything, "alice", models.RoleAssistant, "hello").Return(dbErr).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			tt.setupMocks(repo)
			logger := New(newNoopLogger(), repo)

			err := logger.LogTurn(context.Background(), "alice", "hi", "hello")
			assert.ErrorIs(t, err, dbErr)
			repo.AssertExpectations(t)
		})
	}
}

func TestLogger_ConcurrentUsersDoNotMix(t *testing.T) {
	repo := &memoryRepository{}
	logger := New(newNoopLogger(), repo)
	const turns = 50

	var wg sync.WaitGroup
	for _, username := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			for i := range turns {
				assert.NoError(t, logger.LogTurn(context.Background(), username,
					fmt.Sprintf("%s-q%d", username, i), fmt.Sprintf("%s-a%d", username, i)))
			}
		}(username)
	}
	wg.Wait()

	for _, username := range []string{"alice", "bob"} {
		msgs, err := logger.History(context.Background(), username, 1000)
		require.NoError(t, err)
		require.Len(t, msgs, turns*2)
		for i, m := range msgs {
			assert.Equal(t, username, m.Username)
			if i%2 == 0 {
				assert.Equal(t, models.RoleUser, m.Role)
				assert.Equal(t, fmt.Sprintf("%s-q%d", username, i/2), m.Content)
			} else {
				assert.Equal(t, models.RoleAssistant, m.Role)
			}
		}
	}
}

func TestLogger_History(t *testing.T) {
	repo := new(MockRepository)
	logger := New(newNoopLogger(), repo)

	repo.On("ListMessages", mock.Anything, "alice", DefaultHistoryLimit).Return([]*models.Message{}, nil).Once()
	repo.On("ListMessages", mock.Anything, "alice", 5).Return(nil, errors.New("db down")).Once()

	msgs, err := logger.History(context.Background(), "alice", -1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = logger.History(context.Background(), "alice", 5)
	assert.Error(t, err)
	repo.AssertExpectations(t)
}
