package domain

// DashboardStats are the headline counters of the dashboard.
type DashboardStats struct {
	TotalConversations  int64 `json:"total_conversations"`
	TotalMessages       int64 `json:"total_messages"`
	TotalContacts       int64 `json:"total_contacts"`
	TotalTickets        int64 `json:"total_tickets"`
	ActiveConversations int64 `json:"active_conversations"`
	PendingTickets      int64 `json:"pending_tickets"`
	PeriodMessages      int64 `json:"period_messages"`
	NewContacts         int64 `json:"new_contacts"`
}

// DailyCount is one point of a per-day series.
type DailyCount struct {
	Date     string `json:"date"`
	Messages int64  `json:"messages"`
}

// Dashboard is the tenant overview.
type Dashboard struct {
	Stats               DashboardStats   `json:"stats"`
	ChannelDistribution map[string]int64 `json:"channel_distribution"`
	MessageTrend        []DailyCount     `json:"message_trend"`
}

// ConversationReport aggregates conversations created in a period.
type ConversationReport struct {
	TotalConversations     int64            `json:"total_conversations"`
	AvgResponseTimeMinutes float64          `json:"avg_response_time_minutes"`
	StatusDistribution     map[string]int64 `json:"status_distribution"`
	PriorityDistribution   map[string]int64 `json:"priority_distribution"`
	ChannelDistribution    map[string]int64 `json:"channel_distribution"`
	DailyConversations     map[string]int64 `json:"daily_conversations"`
}

// MessageReport aggregates messages created in a period.
type MessageReport struct {
	TotalMessages       int64            `json:"total_messages"`
	InboundMessages     int64            `json:"inbound_messages"`
	OutboundMessages    int64            `json:"outbound_messages"`
	TypeDistribution    map[string]int64 `json:"type_distribution"`
	HourlyDistribution  map[int]int64    `json:"hourly_distribution"`
	WeekdayDistribution map[string]int64 `json:"weekday_distribution"`
	DailyMessages       map[string]int64 `json:"daily_messages"`
}

// TicketReport aggregates tickets created in a period.
type TicketReport struct {
	TotalTickets           int64            `json:"total_tickets"`
	ResolvedTickets        int64            `json:"resolved_tickets"`
	ResolutionRate         float64          `json:"resolution_rate"`
	AvgResolutionTimeHours float64          `json:"avg_resolution_time_hours"`
	StatusDistribution     map[string]int64 `json:"status_distribution"`
	PriorityDistribution   map[string]int64 `json:"priority_distribution"`
	CategoryDistribution   map[string]int64 `json:"category_distribution"`
	AgentDistribution      map[string]int64 `json:"agent_distribution"`
	DailyTickets           map[string]int64 `json:"daily_tickets"`
}

// AgentRef identifies an agent in reports.
type AgentRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// AgentMetrics are one agent's counters for a period.
type AgentMetrics struct {
	AssignedConversations int64   `json:"assigned_conversations"`
	AssignedTickets       int64   `json:"assigned_tickets"`
	ResolvedTickets       int64   `json:"resolved_tickets"`
	ResolutionRate        float64 `json:"resolution_rate"`
	SentMessages          int64   `json:"sent_messages"`
}

// AgentPerformance pairs an agent with its metrics.
type AgentPerformance struct {
	Agent   AgentRef     `json:"agent"`
	Metrics AgentMetrics `json:"metrics"`
}
