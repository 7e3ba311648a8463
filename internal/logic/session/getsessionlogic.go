package session

import (
	"context"
	"strings"
	"time"

	"github.com/opalchat/opal/internal/chat"
	"github.com/opalchat/opal/internal/logging"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

type GetSessionLogic struct {
	logging.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

// Fetch one session with its content-unwrapped message log
func NewGetSessionLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetSessionLogic {
	return &GetSessionLogic{
		Logger: logging.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetSessionLogic) GetSession(req *types.GetSessionRequest) (*types.GetSessionResponse, error) {
	sess, err := l.svcCtx.DB.GetSession(l.ctx, req.SessionId)
	if err != nil {
		return nil, err
	}

	rows, err := l.svcCtx.DB.GetMessages(l.ctx, sess.ID)
	if err != nil {
		l.Errorf("Failed to load messages for session %s: %v", sess.ID, err)
		return nil, err
	}

	messages := make([]types.SessionMessage, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Content) == "" {
			continue
		}
		payload := chat.DecodePayload(row.Content)
		images := payload.Images
		if images == nil {
			images = []string{}
		}
		messages = append(messages, types.SessionMessage{
			Id:        row.ID,
			SessionId: row.SessionID,
			Role:      row.Role,
			Content:   payload.Content,
			Reasoning: payload.Reasoning,
			Images:    images,
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return &types.GetSessionResponse{
		Id:        sess.ID,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		ModelUsed: sess.ModelUsed,
		Messages:  messages,
	}, nil
}
