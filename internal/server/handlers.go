package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/notexe/habit-alarm/internal/alarm"
	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/dispatcher"
	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/reconciler"
	"github.com/notexe/habit-alarm/internal/timer"
)

type alarmView struct {
	model.Alarm
	Schedule string        `json:"schedule"`
	Pending  []timer.Timer `json:"pending,omitempty"`
}

type eventView struct {
	TimerID         string     `json:"timer_id"`
	AlarmID         string     `json:"alarm_id"`
	Kind            model.Kind `json:"type"`
	Completed       bool       `json:"completed"`
	CompletionError string     `json:"completion_error,omitempty"`
	NextFireAt      *time.Time `json:"next_fire_at,omitempty"`
	Duplicate       bool       `json:"duplicate,omitempty"`
	Inactive        bool       `json:"inactive,omitempty"`
	Superseded      bool       `json:"superseded,omitempty"`
}

type historyView struct {
	AlarmID string             `json:"alarm_id"`
	From    string             `json:"from"`
	To      string             `json:"to"`
	Done    int                `json:"completed_days"`
	Records []model.Completion `json:"records"`
	// Grid has one row per week, Sunday first.
	Grid [][]bool `json:"grid"`
}

func jsonResult(v any) *mcp.CallToolResult {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output))
}

func toolError(action string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, engine.ErrPermissionDenied):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: notification delivery is not permitted, enable notification delivery and retry", action))
	case errors.Is(err, alarm.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: alarm not found", action))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
	}
}

// savedButUnscheduled reports a record that was persisted even though its
// notifications could not be armed.
func savedButUnscheduled(a *model.Alarm, err error) *mcp.CallToolResult {
	res := toolError("schedule notifications", err)
	output, _ := json.MarshalIndent(a, "", "  ")
	res.Content = append(res.Content, mcp.NewTextContent("Alarm was saved:\n"+string(output)))
	return res
}

func view(a model.Alarm, pending []timer.Timer) alarmView {
	return alarmView{Alarm: a, Schedule: a.Weekdays.Describe(), Pending: pending}
}

func (s *Server) handleCreateAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	timeStr := req.GetString("time", "")
	daysStr := req.GetString("days", "")

	if title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}
	tod, err := model.ParseTimeOfDay(timeStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid time: %v (use HH:MM, e.g. 07:30)", err)), nil
	}
	days, err := model.ParseWeekdays(daysStr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid days: %v", err)), nil
	}

	a := model.Alarm{
		Title:             title,
		Time:              tod,
		Weekdays:          days,
		VerificationDelay: req.GetString("verification_delay", model.DefaultVerificationDelay),
		Active:            req.GetBool("active", true),
	}

	created, err := s.deps.Alarms.Create(ctx, a)
	if err != nil {
		if created != nil {
			return savedButUnscheduled(created, err), nil
		}
		return toolError("create alarm", err), nil
	}

	return jsonResult(view(*created, nil)), nil
}

func (s *Server) handleListAlarms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alarms, err := s.deps.Alarms.List(ctx)
	if err != nil {
		return toolError("list alarms", err), nil
	}

	if len(alarms) == 0 {
		return mcp.NewToolResultText("No alarms found."), nil
	}

	views := make([]alarmView, 0, len(alarms))
	for _, a := range alarms {
		views = append(views, view(a, nil))
	}
	return jsonResult(views), nil
}

func (s *Server) handleGetAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	a, err := s.deps.Alarms.Get(ctx, id)
	if err != nil {
		return toolError("get alarm", err), nil
	}
	pending, err := s.deps.Engine.Pending(ctx, id)
	if err != nil {
		return toolError("list notifications", err), nil
	}

	return jsonResult(view(*a, pending)), nil
}

func (s *Server) handleUpdateAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	var fields alarm.UpdateFields

	if v := req.GetString("title", ""); v != "" {
		fields.Title = &v
	}
	if v := req.GetString("time", ""); v != "" {
		tod, err := model.ParseTimeOfDay(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid time: %v", err)), nil
		}
		fields.Time = &tod
	}
	if v := req.GetString("days", ""); v != "" {
		days, err := model.ParseWeekdays(v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid days: %v", err)), nil
		}
		fields.Weekdays = &days
	}
	if v := req.GetString("verification_delay", ""); v != "" {
		fields.VerificationDelay = &v
	}

	updated, err := s.deps.Alarms.Update(ctx, id, fields)
	if err != nil {
		if updated != nil {
			return savedButUnscheduled(updated, err), nil
		}
		return toolError("update alarm", err), nil
	}

	return jsonResult(view(*updated, nil)), nil
}

func (s *Server) handleToggleAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	var (
		updated *model.Alarm
		err     error
	)
	if _, ok := req.GetArguments()["active"]; ok {
		updated, err = s.deps.Alarms.SetActive(ctx, id, req.GetBool("active", true))
	} else {
		updated, err = s.deps.Alarms.Toggle(ctx, id)
	}
	if err != nil {
		if updated != nil {
			return savedButUnscheduled(updated, err), nil
		}
		return toolError("toggle alarm", err), nil
	}

	state := "disabled"
	if updated.Active {
		state = "enabled"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Alarm %s %s.", id, state)), nil
}

func (s *Server) handleDeleteAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.deps.Alarms.Delete(ctx, id); err != nil {
		return toolError("delete alarm", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Alarm %s deleted.", id)), nil
}

func (s *Server) handleScheduleAlarm(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	a, err := s.deps.Alarms.Get(ctx, id)
	if err != nil {
		return toolError("schedule alarm", err), nil
	}
	if !a.Active {
		return mcp.NewToolResultError(fmt.Sprintf("alarm %s is disabled; enable it with toggle_alarm", id)), nil
	}

	if err := s.deps.Engine.ScheduleAlarm(ctx, *a); err != nil {
		return toolError("schedule alarm", err), nil
	}
	pending, err := s.deps.Engine.Pending(ctx, id)
	if err != nil {
		return toolError("list notifications", err), nil
	}

	return jsonResult(pending), nil
}

func (s *Server) handleCancelNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := s.deps.Engine.CancelAlarmNotifications(ctx, id); err != nil {
		return toolError("cancel notifications", err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Notifications for alarm %s cancelled.", id)), nil
}

func (s *Server) handleListPending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending, err := s.deps.Engine.Pending(ctx, req.GetString("alarm_id", ""))
	if err != nil {
		return toolError("list notifications", err), nil
	}

	if len(pending) == 0 {
		return mcp.NewToolResultText("No pending notifications."), nil
	}

	return jsonResult(pending), nil
}

func (s *Server) handleRespond(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("timer_id", "")
	if id == "" {
		return mcp.NewToolResultError("timer_id is required"), nil
	}

	t, err := s.deps.Runtime.Delivered(ctx, id)
	if err != nil {
		if errors.Is(err, timer.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("notification %s was not delivered or has expired", id)), nil
		}
		return toolError("look up notification", err), nil
	}

	return s.dispatch(ctx, reconciler.Event{Source: reconciler.SourceTapped, Timer: t})
}

func (s *Server) handleRawEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := reconciler.Source(req.GetString("source", ""))
	if source != reconciler.SourceTapped && source != reconciler.SourceDelivered {
		return mcp.NewToolResultError("source must be tapped or delivered"), nil
	}

	ev, err := reconciler.ParseEvent(source, []byte(req.GetString("event", "")))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid event: %v", err)), nil
	}

	return s.dispatch(ctx, ev)
}

func (s *Server) dispatch(ctx context.Context, ev reconciler.Event) (*mcp.CallToolResult, error) {
	res, err := s.deps.Events.Dispatch(ctx, ev)
	if err != nil {
		if errors.Is(err, dispatcher.ErrNoHandler) {
			return mcp.NewToolResultError("notification handling is not set up"), nil
		}
		return toolError("handle notification", err), nil
	}

	out := eventView{
		TimerID:    ev.Timer.ID,
		AlarmID:    ev.Timer.Payload.AlarmID,
		Kind:       ev.Timer.Payload.Kind,
		Completed:  res.Completed,
		Duplicate:  res.Duplicate,
		Inactive:   res.Inactive,
		Superseded: res.Superseded,
	}
	if res.CompletionErr != nil {
		out.CompletionError = res.CompletionErr.Error()
	}
	if res.ReArmed != nil {
		next := res.ReArmed.FireAt
		out.NextFireAt = &next
	}
	return jsonResult(out), nil
}

func (s *Server) handleRecordCompletion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alarmID := req.GetString("alarm_id", "")
	if alarmID == "" {
		return mcp.NewToolResultError("alarm_id is required"), nil
	}

	date := req.GetString("date", "")
	if date == "" {
		date = s.deps.Now().Format(model.DateLayout)
	} else if _, err := time.Parse(model.DateLayout, date); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid date: %v (use YYYY-MM-DD)", err)), nil
	}
	completed := req.GetBool("completed", true)

	if err := s.deps.Completions.RecordCompletion(ctx, alarmID, date, completed); err != nil {
		return toolError("record completion", err), nil
	}

	rec, err := s.deps.Completions.Get(ctx, alarmID, date)
	if err != nil {
		return toolError("read completion", err), nil
	}
	return jsonResult(rec), nil
}

func (s *Server) handleCompletionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alarmID := req.GetString("alarm_id", "")
	if alarmID == "" {
		return mcp.NewToolResultError("alarm_id is required"), nil
	}
	weeks := int(req.GetFloat("weeks", float64(s.deps.GraphWeeks)))
	if weeks <= 0 {
		return mcp.NewToolResultError("weeks must be positive"), nil
	}

	today := s.deps.Now()
	from := completion.StartOfGrid(today, weeks).Format(model.DateLayout)
	to := today.Format(model.DateLayout)

	records, err := s.deps.Completions.History(ctx, alarmID, from, to)
	if err != nil {
		return toolError("read history", err), nil
	}

	out := historyView{AlarmID: alarmID, From: from, To: to, Records: records}
	if out.Records == nil {
		out.Records = []model.Completion{}
	}
	for _, week := range completion.Contributions(records, today, weeks) {
		row := make([]bool, len(week))
		for i, d := range week {
			row[i] = d.Completed
			if d.Completed {
				out.Done++
			}
		}
		out.Grid = append(out.Grid, row)
	}
	return jsonResult(out), nil
}

func (s *Server) handleReconcile(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.deps.Alarms.ReconcileAll(ctx)
	if err != nil {
		res := toolError("reconcile", err)
		output, _ := json.MarshalIndent(report, "", "  ")
		res.Content = append(res.Content, mcp.NewTextContent(string(output)))
		return res, nil
	}
	return jsonResult(report), nil
}
