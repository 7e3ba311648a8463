package session

import (
	"net/http"

	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/logic/session"
	"github.com/opalchat/opal/internal/svc"
)

// List all sessions, newest first
func ListSessionsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := session.NewListSessionsLogic(r.Context(), svcCtx)
		resp, err := l.ListSessions()
		if err != nil {
			httputil.InternalError(w, "Failed to retrieve sessions")
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}
