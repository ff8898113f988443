package dinex

import (
	"encoding/json"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// Snapshot is the JSON document served by a node's status endpoint.
type Snapshot struct {
	Rank         int    `json:"rank"`
	Phase        string `json:"phase"`
	LeftFork     string `json:"left_fork"`
	RightFork    string `json:"right_fork"`
	LeftPending  bool   `json:"left_pending"`
	RightPending bool   `json:"right_pending"`
	Meals        uint64 `json:"meals"`
	LastWaitMs   int64  `json:"last_wait_ms"`
	TotalWaitMs  int64  `json:"total_wait_ms"`
}

// Snapshotter provides a consistent copy of a node's observable state.
type Snapshotter interface {
	Snapshot() Snapshot
}

// StatusServer is the read-only status endpoint of one node.
type StatusServer struct {
	port string
	srv  *fasthttp.Server
}

// NewStatusServer prepares a status endpoint serving s at the port of
// the given http address.
func NewStatusServer(addr string, s Snapshotter) (*StatusServer, error) {
	httpURL, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	requestHandler := func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/" {
			ctx.Error("not found", fasthttp.StatusNotFound)
			return
		}
		buf, err := json.Marshal(s.Snapshot())
		if err != nil {
			ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(buf)
	}

	return &StatusServer{
		// listen string should be in form of ":8080"
		port: ":" + httpURL.Port(),
		srv:  &fasthttp.Server{Handler: requestHandler},
	}, nil
}

// ListenAndServe blocks serving the endpoint until Shutdown is called,
// so callers run it in its own goroutine.
func (ss *StatusServer) ListenAndServe() error {
	logrus.Infof("status server starting on %s", ss.port)
	return ss.srv.ListenAndServe(ss.port)
}

// Shutdown stops the endpoint and releases its listener.
func (ss *StatusServer) Shutdown() error {
	return ss.srv.Shutdown()
}
