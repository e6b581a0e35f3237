package metrics

import (
	"bytes"
	"net/http"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// Handler 返回暴露 reg 的 http.Handler
//
// 默认输出 Prometheus 文本格式；?format=json 或 ?format=msgpack 返回编码后的快照。
func Handler(reg *Registry, opts ...Option) http.Handler {
	return &exposition{reporter: NewReporter(reg, opts...)}
}

type exposition struct {
	reporter *Reporter
}

func (h *exposition) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" || format == FormatText {
		h.serveText(w)
		return
	}

	s, err := NewSerializer(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.Marshal(h.reporter.Snapshot())
	if err != nil {
		h.reporter.logger.Error("encode snapshot failed", clog.String("format", format), clog.Error(err))
		http.Error(w, "encode snapshot failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", s.ContentType())
	_, _ = w.Write(data)
}

func (h *exposition) serveText(w http.ResponseWriter) {
	var buf bytes.Buffer
	report, err := h.reporter.Export(&buf)
	if err != nil {
		h.reporter.logger.Error("export metrics failed", clog.Error(err))
		http.Error(w, "export metrics failed", http.StatusInternalServerError)
		return
	}
	if len(report.Skipped) > 0 {
		h.reporter.logger.Debug("metrics exported with skipped entries",
			clog.Int("skipped", len(report.Skipped)),
			clog.String("code", xerrors.GetCode(report.Skipped[0])))
	}
	w.Header().Set("Content-Type", ContentType)
	_, _ = w.Write(buf.Bytes())
}
