package repository

import (
	"context"
	"time"

	"github.com/ClareAI/astra-crm-service/internal/domain"
	"gorm.io/gorm"
)

// Every repository method except the principal lookups on UserRepository and
// CustomerRepository takes the caller's customer id and filters by it.

// CustomerRepository defines the interface for tenant operations
type CustomerRepository interface {
	// Create operations
	Create(ctx context.Context, req *domain.CreateCustomerRequest) (*domain.Customer, error)

	// Read operations
	GetByID(ctx context.Context, customerID string) (*domain.Customer, error)

	// Update operations
	UpdateProfile(ctx context.Context, customerID string, req *domain.UpdateCustomerProfileRequest) (*domain.Customer, error)
	MergeSettings(ctx context.Context, customerID string, settings map[string]interface{}) (map[string]interface{}, error)

	// Utility operations
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserRepository defines the interface for user operations
type UserRepository interface {
	// Create operations
	Create(ctx context.Context, customerID string, req *domain.CreateUserRequest) (*domain.User, error)

	// Principal lookups. These are the only unscoped reads: they establish the scope.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Read operations
	Get(ctx context.Context, customerID, id string) (*domain.User, error)
	GetActive(ctx context.Context, customerID, id string) (*domain.User, error)
	List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.User, int64, error)
	ListActive(ctx context.Context, customerID string) ([]*domain.User, error)

	// Update operations
	Update(ctx context.Context, customerID, id string, req *domain.UpdateUserRequest) (*domain.User, error)
	UpdatePassword(ctx context.Context, customerID, id, passwordHash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// Utility operations
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ContactRepository defines the interface for contact operations
type ContactRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateContactRequest) (*domain.Contact, error)
	Import(ctx context.Context, customerID string, reqs []domain.CreateContactRequest) (*domain.ImportContactsResult, error)

	Get(ctx context.Context, customerID, id string) (*domain.Contact, error)
	List(ctx context.Context, customerID string, filter domain.ContactFilter, page domain.PageRequest) ([]*domain.Contact, int64, error)
	Stats(ctx context.Context, customerID, id string) (*domain.ContactStats, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateContactRequest) (*domain.Contact, error)
	SetBlocked(ctx context.Context, customerID, id string, blocked bool) (*domain.Contact, error)
}

// ChannelRepository defines the interface for channel operations
type ChannelRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateChannelRequest) (*domain.Channel, error)

	Get(ctx context.Context, customerID, id string) (*domain.Channel, error)
	List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.Channel, int64, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateChannelRequest) (*domain.Channel, error)
	MarkConnected(ctx context.Context, customerID, id string, at time.Time) (*domain.Channel, error)
	MarkSynced(ctx context.Context, customerID, id string, at time.Time) (*domain.Channel, error)

	// Delete fails with Conflict while conversations reference the channel.
	Delete(ctx context.Context, customerID, id string) error
}

// ConversationRepository defines the interface for conversation operations
type ConversationRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateConversationRequest) (*domain.Conversation, error)

	Get(ctx context.Context, customerID, id string) (*domain.Conversation, error)
	List(ctx context.Context, customerID string, filter domain.ConversationFilter, page domain.PageRequest) ([]*domain.ConversationSummary, int64, error)
	Stats(ctx context.Context, customerID, userID string) (*domain.ConversationStats, error)

	Assign(ctx context.Context, customerID, id string, agentID *string) (*domain.Conversation, error)
	SetStatus(ctx context.Context, customerID, id string, status domain.ConversationStatus) (*domain.Conversation, error)
	SetTags(ctx context.Context, customerID, id string, tags []string) (*domain.Conversation, error)
	Touch(ctx context.Context, customerID, id string, at time.Time) error
}

// MessageRepository defines the interface for message operations.
// Messages carry no customer id; the tenant is checked through their conversation.
type MessageRepository interface {
	Send(ctx context.Context, customerID, senderID string, req *domain.SendMessageRequest) (*domain.Message, error)

	ListByConversation(ctx context.Context, customerID, conversationID string) ([]*domain.Message, error)
	Search(ctx context.Context, customerID, query, conversationID string, page domain.PageRequest) ([]*domain.MessageSearchResult, int64, error)

	UpdateStatus(ctx context.Context, customerID, id string, status domain.MessageStatus) (*domain.Message, error)
}

// TicketRepository defines the interface for ticket operations
type TicketRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateTicketRequest) (*domain.Ticket, error)

	Get(ctx context.Context, customerID, id string) (*domain.Ticket, error)
	List(ctx context.Context, customerID string, filter domain.TicketFilter, page domain.PageRequest) ([]*domain.Ticket, int64, error)
	Stats(ctx context.Context, customerID, userID string) (*domain.TicketStats, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateTicketRequest) (*domain.Ticket, error)
	Assign(ctx context.Context, customerID, id string, agentID *string) (*domain.Ticket, error)
	SetStatus(ctx context.Context, customerID, id string, req *domain.TicketStatusRequest) (*domain.Ticket, error)
}

// AutomationRepository defines the interface for automation operations
type AutomationRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateAutomationRequest) (*domain.Automation, error)

	Get(ctx context.Context, customerID, id string) (*domain.Automation, error)
	List(ctx context.Context, customerID string, filter domain.AutomationFilter, page domain.PageRequest) ([]*domain.Automation, int64, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateAutomationRequest) (*domain.Automation, error)
	Toggle(ctx context.Context, customerID, id string) (*domain.Automation, error)

	Delete(ctx context.Context, customerID, id string) error
}

// TemplateRepository defines the interface for message template operations
type TemplateRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateTemplateRequest) (*domain.Template, error)
	Import(ctx context.Context, customerID string, reqs []domain.CreateTemplateRequest) (*domain.ImportTemplatesResult, error)

	Get(ctx context.Context, customerID, id string) (*domain.Template, error)
	List(ctx context.Context, customerID string, filter domain.TemplateFilter, page domain.PageRequest) ([]*domain.Template, int64, error)
	Categories(ctx context.Context, customerID string) ([]string, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateTemplateRequest) (*domain.Template, error)
	Use(ctx context.Context, customerID, id string, values map[string]string) (*domain.RenderedTemplate, error)

	Delete(ctx context.Context, customerID, id string) error
}

// WebhookRepository defines the interface for webhook operations
type WebhookRepository interface {
	Create(ctx context.Context, customerID string, req *domain.CreateWebhookRequest, secret string) (*domain.Webhook, error)

	Get(ctx context.Context, customerID, id string) (*domain.Webhook, error)
	List(ctx context.Context, customerID string, page domain.PageRequest) ([]*domain.Webhook, int64, error)
	ListSubscribed(ctx context.Context, customerID, event string) ([]*domain.Webhook, error)

	Update(ctx context.Context, customerID, id string, req *domain.UpdateWebhookRequest) (*domain.Webhook, error)
	RecordDelivery(ctx context.Context, customerID, id string, success bool, at time.Time) error

	Delete(ctx context.Context, customerID, id string) error
}

// ActivityLogRepository defines the interface for the audit trail. It is append-only.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	List(ctx context.Context, customerID string, filter domain.ActivityLogFilter, page domain.PageRequest) ([]*domain.ActivityLog, int64, error)
}

// ReportRepository defines the read-only aggregate queries
type ReportRepository interface {
	Dashboard(ctx context.Context, customerID string, now time.Time) (*domain.Dashboard, error)
	Conversations(ctx context.Context, customerID string, period domain.DateRange, channelType domain.ChannelType) (*domain.ConversationReport, error)
	Messages(ctx context.Context, customerID string, period domain.DateRange) (*domain.MessageReport, error)
	Tickets(ctx context.Context, customerID string, period domain.DateRange) (*domain.TicketReport, error)
	Agents(ctx context.Context, customerID string, period domain.DateRange) ([]domain.AgentPerformance, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Customer() CustomerRepository
	User() UserRepository
	Contact() ContactRepository
	Channel() ChannelRepository
	Conversation() ConversationRepository
	Message() MessageRepository
	Ticket() TicketRepository
	Automation() AutomationRepository
	Template() TemplateRepository
	Webhook() WebhookRepository
	ActivityLog() ActivityLogRepository
	Report() ReportRepository

	// Transaction support. Every repository reached through repos shares the
	// transaction; any error returned by fn rolls all of it back.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db               *gorm.DB
	customerRepo     *GormCustomerRepository
	userRepo         *GormUserRepository
	contactRepo      *GormContactRepository
	channelRepo      *GormChannelRepository
	conversationRepo *GormConversationRepository
	messageRepo      *GormMessageRepository
	ticketRepo       *GormTicketRepository
	automationRepo   *GormAutomationRepository
	templateRepo     *GormTemplateRepository
	webhookRepo      *GormWebhookRepository
	activityLogRepo  *GormActivityLogRepository
	reportRepo       *GormReportRepository
}

// NewGormRepositoryManager creates a repository manager on db
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:               db,
		customerRepo:     NewGormCustomerRepository(db),
		userRepo:         NewGormUserRepository(db),
		contactRepo:      NewGormContactRepository(db),
		channelRepo:      NewGormChannelRepository(db),
		conversationRepo: NewGormConversationRepository(db),
		messageRepo:      NewGormMessageRepository(db),
		ticketRepo:       NewGormTicketRepository(db),
		automationRepo:   NewGormAutomationRepository(db),
		templateRepo:     NewGormTemplateRepository(db),
		webhookRepo:      NewGormWebhookRepository(db),
		activityLogRepo:  NewGormActivityLogRepository(db),
		reportRepo:       NewGormReportRepository(db),
	}
}

func (m *GormRepositoryManager) Customer() CustomerRepository         { return m.customerRepo }
func (m *GormRepositoryManager) User() UserRepository                 { return m.userRepo }
func (m *GormRepositoryManager) Contact() ContactRepository           { return m.contactRepo }
func (m *GormRepositoryManager) Channel() ChannelRepository           { return m.channelRepo }
func (m *GormRepositoryManager) Conversation() ConversationRepository { return m.conversationRepo }
func (m *GormRepositoryManager) Message() MessageRepository           { return m.messageRepo }
func (m *GormRepositoryManager) Ticket() TicketRepository             { return m.ticketRepo }
func (m *GormRepositoryManager) Automation() AutomationRepository     { return m.automationRepo }
func (m *GormRepositoryManager) Template() TemplateRepository         { return m.templateRepo }
func (m *GormRepositoryManager) Webhook() WebhookRepository           { return m.webhookRepo }
func (m *GormRepositoryManager) ActivityLog() ActivityLogRepository   { return m.activityLogRepo }
func (m *GormRepositoryManager) Report() ReportRepository             { return m.reportRepo }

// WithTx executes a function within a database transaction
func (m *GormRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryManager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormRepositoryManager(tx))
	})
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
