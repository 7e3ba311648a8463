package session

import (
	"errors"
	"net/http"

	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/httputil"
	"github.com/opalchat/opal/internal/logic/session"
	"github.com/opalchat/opal/internal/svc"
	"github.com/opalchat/opal/internal/types"
)

// Fetch one session with its messages
func GetSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.GetSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		l := session.NewGetSessionLogic(r.Context(), svcCtx)
		resp, err := l.GetSession(&req)
		if err != nil {
			if errors.Is(err, db.ErrSessionNotFound) {
				httputil.NotFound(w, "Session not found")
			} else {
				httputil.InternalError(w, "Failed to retrieve session")
			}
			return
		}
		httputil.OkJSON(w, resp)
	}
}
