package web

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	appLog "daycard/internal/log"
	"daycard/internal/model"
)

var templateFuncs = template.FuncMap{
	"clock": func(t time.Time) string { return t.Format("15:04") },
}

// cardView is what card.html.tmpl renders.
type cardView struct {
	Title         string
	Date          time.Time
	Events        []model.Event
	Pending       []model.Task
	Completed     []model.Task
	Remaining     int
	Notifications bool
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	view := cardView{
		Title:         s.cfg.Title,
		Date:          s.today(),
		Notifications: s.deps.Notifications != nil,
	}
	for _, ev := range s.deps.Events.ListTodaysEvents() {
		ev.Start, ev.End = ev.Start.In(s.loc), ev.End.In(s.loc)
		view.Events = append(view.Events, ev)
	}
	for _, t := range s.deps.Tasks.List() {
		if t.Completed {
			view.Completed = append(view.Completed, t)
		} else {
			view.Pending = append(view.Pending, t)
		}
	}
	view.Remaining = len(view.Pending)

	var buf bytes.Buffer
	if err := s.card.Execute(&buf, view); err != nil {
		appLog.Error("card render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
