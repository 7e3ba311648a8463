package handler

import (
	"net/http"
	"time"

	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

const version = "1.0.0"

func HealthCheckHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.OkJSON(w, &types.HealthResponse{
			Status:    "healthy",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}
