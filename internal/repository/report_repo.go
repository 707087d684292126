package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

const (
	dashboardPeriod   = 30 * 24 * time.Hour
	dashboardTrendLen = 7
	dayLayout         = "2006-01-02"

	unassignedLabel    = "Unassigned"
	uncategorizedLabel = "Uncategorized"
)

// GormReportRepository implements ReportRepository using GORM.
// Rows are aggregated in Go so the same code runs on postgres and sqlite.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GORM report repository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

func (r *GormReportRepository) scoped(ctx context.Context, model interface{}, customerID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(model).Scopes(TenantScope(customerID))
}

// tenantMessages is the tenant's messages, reached through their conversations
func (r *GormReportRepository) tenantMessages(ctx context.Context, customerID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.customer_id = ?", customerID)
}

// Dashboard computes the tenant overview as of now
func (r *GormReportRepository) Dashboard(ctx context.Context, customerID string, now time.Time) (*domain.Dashboard, error) {
	now = now.UTC()
	start := now.Add(-dashboardPeriod)
	stats := domain.DashboardStats{}

	counts := []struct {
		name  string
		query *gorm.DB
		dest  *int64
	}{
		{"conversations", r.scoped(ctx, &domain.Conversation{}, customerID), &stats.TotalConversations},
		{"messages", r.tenantMessages(ctx, customerID), &stats.TotalMessages},
		{"contacts", r.scoped(ctx, &domain.Contact{}, customerID), &stats.TotalContacts},
		{"tickets", r.scoped(ctx, &domain.Ticket{}, customerID), &stats.TotalTickets},
		{"active conversations", r.scoped(ctx, &domain.Conversation{}, customerID).
			Where("status = ?", domain.ConversationStatusOpen), &stats.ActiveConversations},
		{"pending tickets", r.scoped(ctx, &domain.Ticket{}, customerID).
			Where("status IN ?", activeTicketStatuses), &stats.PendingTickets},
		{"period messages", r.tenantMessages(ctx, customerID).
			Where("messages.created_at >= ? AND messages.created_at <= ?", start, now), &stats.PeriodMessages},
		{"new contacts", r.scoped(ctx, &domain.Contact{}, customerID).
			Where("created_at >= ? AND created_at <= ?", start, now), &stats.NewContacts},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.name, err)
		}
	}

	distribution, err := r.channelDistribution(ctx, customerID, r.scoped(ctx, &domain.Conversation{}, customerID))
	if err != nil {
		return nil, err
	}

	trendStart := startOfDay(now).AddDate(0, 0, -(dashboardTrendLen - 1))
	var times []time.Time
	err = r.tenantMessages(ctx, customerID).
		Where("messages.created_at >= ?", trendStart).
		Pluck("messages.created_at", &times).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load message trend: %w", err)
	}
	perDay := make(map[string]int64, dashboardTrendLen)
	for _, t := range times {
		perDay[t.UTC().Format(dayLayout)]++
	}
	trend := make([]domain.DailyCount, 0, dashboardTrendLen)
	for i := 0; i < dashboardTrendLen; i++ {
		day := trendStart.AddDate(0, 0, i).Format(dayLayout)
		trend = append(trend, domain.DailyCount{Date: day, Messages: perDay[day]})
	}

	return &domain.Dashboard{
		Stats:               stats,
		ChannelDistribution: distribution,
		MessageTrend:        trend,
	}, nil
}

// channelDistribution counts the conversations of q per channel type
func (r *GormReportRepository) channelDistribution(ctx context.Context, customerID string, q *gorm.DB) (map[string]int64, error) {
	byChannel, err := countBy(q, "channel_id")
	if err != nil {
		return nil, fmt.Errorf("failed to count conversations by channel: %w", err)
	}

	types, err := r.channelTypes(ctx, customerID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(byChannel))
	for channelID, n := range byChannel {
		out[types[channelID]] += n
	}
	return out, nil
}

func (r *GormReportRepository) channelTypes(ctx context.Context, customerID string) (map[string]string, error) {
	var channels []domain.Channel
	if err := r.scoped(ctx, &domain.Channel{}, customerID).Select("id", "type").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("failed to load channels: %w", err)
	}

	types := make(map[string]string, len(channels))
	for _, c := range channels {
		types[c.ID] = string(c.Type)
	}
	return types, nil
}

// Conversations reports on conversations created in period, optionally for one channel type
func (r *GormReportRepository) Conversations(ctx context.Context, customerID string, period domain.DateRange, channelType domain.ChannelType) (*domain.ConversationReport, error) {
	query := r.scoped(ctx, &domain.Conversation{}, customerID).
		Where("created_at >= ? AND created_at < ?", period.Start, period.End)
	if channelType != "" {
		channels := r.db.Model(&domain.Channel{}).Select("id").
			Scopes(TenantScope(customerID)).
			Where("type = ?", channelType)
		query = query.Where("channel_id IN (?)", channels)
	}

	var conversations []domain.Conversation
	if err := query.Select("id", "channel_id", "status", "priority", "created_at").Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	types, err := r.channelTypes(ctx, customerID)
	if err != nil {
		return nil, err
	}

	report := &domain.ConversationReport{
		TotalConversations:   int64(len(conversations)),
		StatusDistribution:   map[string]int64{},
		PriorityDistribution: map[string]int64{},
		ChannelDistribution:  map[string]int64{},
		DailyConversations:   map[string]int64{},
	}
	ids := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
		report.StatusDistribution[string(c.Status)]++
		report.PriorityDistribution[string(c.Priority)]++
		report.ChannelDistribution[types[c.ChannelID]]++
		report.DailyConversations[c.CreatedAt.UTC().Format(dayLayout)]++
	}

	avg, err := r.avgFirstResponseMinutes(ctx, ids)
	if err != nil {
		return nil, err
	}
	report.AvgResponseTimeMinutes = avg

	return report, nil
}

// avgFirstResponseMinutes averages, over conversations with both, the time
// from the first inbound message to the first later outbound one
func (r *GormReportRepository) avgFirstResponseMinutes(ctx context.Context, conversationIDs []string) (float64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}

	var rows []struct {
		ConversationID string
		Direction      domain.MessageDirection
		CreatedAt      time.Time
	}
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("conversation_id", "direction", "created_at").
		Where("conversation_id IN ?", conversationIDs).
		Scan(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load response times: %w", err)
	}

	type firsts struct{ inbound, outbound time.Time }
	byConversation := make(map[string]*firsts, len(conversationIDs))
	for _, row := range rows {
		f, ok := byConversation[row.ConversationID]
		if !ok {
			f = &firsts{}
			byConversation[row.ConversationID] = f
		}
		first := &f.outbound
		if row.Direction == domain.DirectionInbound {
			first = &f.inbound
		}
		if first.IsZero() || row.CreatedAt.Before(*first) {
			*first = row.CreatedAt
		}
	}

	var total float64
	var n int
	for _, f := range byConversation {
		if f.inbound.IsZero() || f.outbound.IsZero() || !f.outbound.After(f.inbound) {
			continue
		}
		total += f.outbound.Sub(f.inbound).Minutes()
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return round2(total / float64(n)), nil
}

// Messages reports on the tenant's messages created in period
func (r *GormReportRepository) Messages(ctx context.Context, customerID string, period domain.DateRange) (*domain.MessageReport, error) {
	var rows []struct {
		Direction domain.MessageDirection
		Type      string
		CreatedAt time.Time
	}
	err := r.tenantMessages(ctx, customerID).
		Select("messages.direction", "messages.type", "messages.created_at").
		Where("messages.created_at >= ? AND messages.created_at < ?", period.Start, period.End).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	report := &domain.MessageReport{
		TotalMessages:       int64(len(rows)),
		TypeDistribution:    map[string]int64{},
		HourlyDistribution:  map[int]int64{},
		WeekdayDistribution: map[string]int64{},
		DailyMessages:       map[string]int64{},
	}
	for _, m := range rows {
		switch m.Direction {
		case domain.DirectionInbound:
			report.InboundMessages++
		case domain.DirectionOutbound:
			report.OutboundMessages++
		}
		at := m.CreatedAt.UTC()
		report.TypeDistribution[m.Type]++
		report.HourlyDistribution[at.Hour()]++
		report.WeekdayDistribution[at.Weekday().String()]++
		report.DailyMessages[at.Format(dayLayout)]++
	}

	return report, nil
}

// Tickets reports on the tenant's tickets created in period
func (r *GormReportRepository) Tickets(ctx context.Context, customerID string, period domain.DateRange) (*domain.TicketReport, error) {
	var tickets []domain.Ticket
	err := r.scoped(ctx, &domain.Ticket{}, customerID).
		Select("id", "assigned_to", "status", "priority", "category", "resolved_at", "created_at").
		Where("created_at >= ? AND created_at < ?", period.Start, period.End).
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}

	var agents []domain.User
	if err := r.scoped(ctx, &domain.User{}, customerID).Select("id", "first_name", "last_name").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}
	names := make(map[string]string, len(agents))
	for i := range agents {
		names[agents[i].ID] = agents[i].FullName()
	}

	report := &domain.TicketReport{
		TotalTickets:         int64(len(tickets)),
		StatusDistribution:   map[string]int64{},
		PriorityDistribution: map[string]int64{},
		CategoryDistribution: map[string]int64{},
		AgentDistribution:    map[string]int64{},
		DailyTickets:         map[string]int64{},
	}
	var resolutionHours float64
	var resolvedWithTime int
	for _, t := range tickets {
		if t.Status.Terminal() {
			report.ResolvedTickets++
		}
		report.StatusDistribution[string(t.Status)]++
		report.PriorityDistribution[string(t.Priority)]++

		category := t.Category
		if category == "" {
			category = uncategorizedLabel
		}
		report.CategoryDistribution[category]++

		agent := unassignedLabel
		if t.AssignedTo != nil {
			if name, ok := names[*t.AssignedTo]; ok {
				agent = name
			}
		}
		report.AgentDistribution[agent]++

		report.DailyTickets[t.CreatedAt.UTC().Format(dayLayout)]++

		if t.ResolvedAt != nil {
			resolutionHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
			resolvedWithTime++
		}
	}

	report.ResolutionRate = percent(report.ResolvedTickets, report.TotalTickets)
	if resolvedWithTime > 0 {
		report.AvgResolutionTimeHours = round2(resolutionHours / float64(resolvedWithTime))
	}

	return report, nil
}

// Agents reports per active user on the work created in period
func (r *GormReportRepository) Agents(ctx context.Context, customerID string, period domain.DateRange) ([]domain.AgentPerformance, error) {
	agents, err := NewGormUserRepository(r.db).ListActive(ctx, customerID)
	if err != nil {
		return nil, err
	}

	inPeriod := func(q *gorm.DB, col string) *gorm.DB {
		return q.Where(col+" >= ? AND "+col+" < ?", period.Start, period.End)
	}

	performance := make([]domain.AgentPerformance, 0, len(agents))
	for _, agent := range agents {
		m := domain.AgentMetrics{}

		if err := inPeriod(r.scoped(ctx, &domain.Conversation{}, customerID), "created_at").
			Where("assigned_to = ?", agent.ID).
			Count(&m.AssignedConversations).Error; err != nil {
			return nil, fmt.Errorf("failed to count agent conversations: %w", err)
		}
		if err := inPeriod(r.scoped(ctx, &domain.Ticket{}, customerID), "created_at").
			Where("assigned_to = ?", agent.ID).
			Count(&m.AssignedTickets).Error; err != nil {
			return nil, fmt.Errorf("failed to count agent tickets: %w", err)
		}
		if err := inPeriod(r.scoped(ctx, &domain.Ticket{}, customerID), "created_at").
			Where("assigned_to = ? AND status IN ?", agent.ID, []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusClosed}).
			Count(&m.ResolvedTickets).Error; err != nil {
			return nil, fmt.Errorf("failed to count agent resolved tickets: %w", err)
		}
		if err := inPeriod(r.tenantMessages(ctx, customerID), "messages.created_at").
			Where("messages.sender_id = ? AND messages.direction = ?", agent.ID, domain.DirectionOutbound).
			Count(&m.SentMessages).Error; err != nil {
			return nil, fmt.Errorf("failed to count agent messages: %w", err)
		}
		m.ResolutionRate = percent(m.ResolvedTickets, m.AssignedTickets)

		performance = append(performance, domain.AgentPerformance{
			Agent: domain.AgentRef{
				ID:    agent.ID,
				Name:  agent.FullName(),
				Email: agent.Email,
				Role:  agent.Role,
			},
			Metrics: m,
		})
	}

	return performance, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
