// Package server exposes alarm management, scheduling and notification
// responses as MCP tools.
package server

import (
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/notexe/habit-alarm/internal/alarm"
	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/dispatcher"
	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/timer"
)

const (
	serverName    = "habit-alarm"
	serverVersion = "1.0.0"
)

// Deps are the components the tools operate on.
type Deps struct {
	Alarms      *alarm.Service
	Engine      *engine.Engine
	Runtime     timer.Runtime
	Events      *dispatcher.Registry
	Completions *completion.Store
	// Now returns local time; it decides "today" for completions.
	Now        func() time.Time
	GraphWeeks int
}

// Server is the MCP server for habit alarms.
type Server struct {
	mcpServer *server.MCPServer
	deps      Deps
}

// NewServer creates a new habit-alarm MCP server.
func NewServer(deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.GraphWeeks <= 0 {
		deps.GraphWeeks = completion.DefaultWeeks
	}
	if deps.Events == nil {
		deps.Events = dispatcher.Default()
	}

	s := &Server{deps: deps}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// create_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("create_alarm",
			mcp.WithDescription("Create a recurring habit alarm and schedule its notifications"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Alarm title, at most 50 characters")),
			mcp.WithString("time", mcp.Required(), mcp.Description("Local time of day, HH:MM (24h)")),
			mcp.WithString("days", mcp.Required(), mcp.Description("every_day, weekdays, weekends, or a comma separated list of days (0=Sun..6=Sat or mon,tue,...)")),
			mcp.WithString("verification_delay", mcp.Description("Delay before the verification prompt, e.g. \"10 minutes\" (default)")),
			mcp.WithBoolean("active", mcp.Description("Whether the alarm starts enabled (default: true)")),
		),
		s.handleCreateAlarm,
	)

	// list_alarms
	s.mcpServer.AddTool(
		mcp.NewTool("list_alarms",
			mcp.WithDescription("List all alarms ordered by time of day"),
		),
		s.handleListAlarms,
	)

	// get_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("get_alarm",
			mcp.WithDescription("Get one alarm with its pending notifications"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
		),
		s.handleGetAlarm,
	)

	// update_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("update_alarm",
			mcp.WithDescription("Edit an alarm's title, time, days or verification delay; notifications are rescheduled"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("time", mcp.Description("New time of day, HH:MM")),
			mcp.WithString("days", mcp.Description("New days, same format as create_alarm")),
			mcp.WithString("verification_delay", mcp.Description("New verification delay")),
		),
		s.handleUpdateAlarm,
	)

	// toggle_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("toggle_alarm",
			mcp.WithDescription("Enable or disable an alarm. Without 'active' the current state is flipped"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
			mcp.WithBoolean("active", mcp.Description("Target state")),
		),
		s.handleToggleAlarm,
	)

	// delete_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("delete_alarm",
			mcp.WithDescription("Cancel an alarm's notifications and delete it permanently"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
		),
		s.handleDeleteAlarm,
	)

	// schedule_alarm
	s.mcpServer.AddTool(
		mcp.NewTool("schedule_alarm",
			mcp.WithDescription("Replace an active alarm's pending notifications with a fresh set"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
		),
		s.handleScheduleAlarm,
	)

	// cancel_alarm_notifications
	s.mcpServer.AddTool(
		mcp.NewTool("cancel_alarm_notifications",
			mcp.WithDescription("Cancel every pending notification of an alarm"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Alarm ID")),
		),
		s.handleCancelNotifications,
	)

	// list_pending_notifications
	s.mcpServer.AddTool(
		mcp.NewTool("list_pending_notifications",
			mcp.WithDescription("List pending notifications, soonest first"),
			mcp.WithString("alarm_id", mcp.Description("Only show notifications of this alarm")),
		),
		s.handleListPending,
	)

	// respond_notification
	s.mcpServer.AddTool(
		mcp.NewTool("respond_notification",
			mcp.WithDescription("Respond to a delivered notification (the user tapped it); verification prompts record today's completion"),
			mcp.WithString("timer_id", mcp.Required(), mcp.Description("ID of the delivered notification")),
		),
		s.handleRespond,
	)

	// notification_event
	s.mcpServer.AddTool(
		mcp.NewTool("notification_event",
			mcp.WithDescription("Feed a raw notification event (JSON) from an external runtime"),
			mcp.WithString("source", mcp.Required(), mcp.Description("tapped or delivered")),
			mcp.WithString("event", mcp.Required(), mcp.Description("Event JSON: {timer_id, alarmId, type, fire_at, title, body}")),
		),
		s.handleRawEvent,
	)

	// record_completion
	s.mcpServer.AddTool(
		mcp.NewTool("record_completion",
			mcp.WithDescription("Record whether an alarm's habit was completed on a date"),
			mcp.WithString("alarm_id", mcp.Required(), mcp.Description("Alarm ID")),
			mcp.WithString("date", mcp.Description("Date, YYYY-MM-DD (default: today)")),
			mcp.WithBoolean("completed", mcp.Description("Completed (default: true)")),
		),
		s.handleRecordCompletion,
	)

	// completion_history
	s.mcpServer.AddTool(
		mcp.NewTool("completion_history",
			mcp.WithDescription("Completion records and the weekly contribution grid of an alarm"),
			mcp.WithString("alarm_id", mcp.Required(), mcp.Description("Alarm ID")),
			mcp.WithNumber("weeks", mcp.Description("Weeks to cover (default: 12)")),
		),
		s.handleCompletionHistory,
	)

	// reconcile
	s.mcpServer.AddTool(
		mcp.NewTool("reconcile",
			mcp.WithDescription("Repair pending notifications so every active alarm has exactly one alarm and one verification per day"),
		),
		s.handleReconcile,
	)
}
