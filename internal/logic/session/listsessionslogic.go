package session

import (
	"context"
	"time"

	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

type ListSessionsLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// List sessions, newest first
func NewListSessionsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ListSessionsLogic {
	return &ListSessionsLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ListSessionsLogic) ListSessions() ([]types.SessionSummary, error) {
	sessions, err := l.svcCtx.DB.ListSessions(l.ctx)
	if err != nil {
		l.Errorf("Failed to list sessions: %v", err)
		return nil, err
	}

	out := make([]types.SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = types.SessionSummary{
			Id:        s.ID,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return out, nil
}
