package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"crowdstage/contexts/trust-safety/vote-admission/domain/entities"
	domainerrors "crowdstage/contexts/trust-safety/vote-admission/domain/errors"
	"crowdstage/contexts/trust-safety/vote-admission/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// InsertVote appends one ledger row. The unique index on
// (email, content_type, content_id, window_key) is the authoritative
// duplicate gate; a 23505 here surfaces as ErrDuplicateLedgerEntry.
func (r *Repository) InsertVote(ctx context.Context, record entities.VoteRecord) error {
	row := voteModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateLedgerEntry
		}
		return r.logError("admission_repo_insert_vote_failed", err,
			"vote_id", row.ID,
			"content_type", row.ContentType,
			"content_id", row.ContentID,
		)
	}
	return nil
}

func (r *Repository) GetVote(ctx context.Context, voteID string) (entities.VoteRecord, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(voteID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteRecord{}, domainerrors.ErrVoteNotFound
		}
		return entities.VoteRecord{}, r.logError("admission_repo_get_vote_failed", err, "vote_id", strings.TrimSpace(voteID))
	}
	return row.toEntity(), nil
}

// SetVoteFlag toggles the only mutable field on a ledger row.
func (r *Repository) SetVoteFlag(ctx context.Context, voteID string, flagged bool) error {
	result := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("id = ?", strings.TrimSpace(voteID)).
		Update("flagged", flagged)
	if result.Error != nil {
		return r.logError("admission_repo_set_vote_flag_failed", result.Error, "vote_id", strings.TrimSpace(voteID))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrVoteNotFound
	}
	return nil
}

func (r *Repository) ListFlagged(ctx context.Context) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("flagged = ?", true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_flagged_failed", err)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) ListByEmail(ctx context.Context, email string) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_by_email_failed", err)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) ListByContentType(ctx context.Context, contentType entities.ContentType) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("content_type = ?", string(contentType)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_by_content_type_failed", err,
			"content_type", string(contentType),
		)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) ListVotes(ctx context.Context) ([]entities.VoteRecord, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_votes_failed", err)
	}
	return toVoteEntities(rows), nil
}

func (r *Repository) HasDuplicateVote(
	ctx context.Context,
	email string,
	target entities.ContentRef,
	windowStart time.Time,
	windowEnd time.Time,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Where("content_type = ?", string(target.Type)).
		Where("content_id = ?", target.ID).
		Where("created_at >= ? AND created_at < ?", windowStart.UTC(), windowEnd.UTC()).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("admission_repo_duplicate_check_failed", err,
			"content_type", string(target.Type),
			"content_id", target.ID,
		)
	}
	return count > 0, nil
}

func (r *Repository) CountByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("device_fingerprint = ?", strings.TrimSpace(fingerprint)).
		Where("created_at >= ?", since.UTC()).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("admission_repo_count_by_fingerprint_failed", err)
	}
	return int(count), nil
}

func (r *Repository) CountByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("ip_address = ?", strings.TrimSpace(ip)).
		Where("created_at >= ?", since.UTC()).
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("admission_repo_count_by_ip_failed", err)
	}
	return int(count), nil
}

func (r *Repository) DistinctEmailsByFingerprintSince(ctx context.Context, fingerprint string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("device_fingerprint = ?", strings.TrimSpace(fingerprint)).
		Where("created_at >= ?", since.UTC()).
		Distinct("email").
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("admission_repo_distinct_emails_by_fingerprint_failed", err)
	}
	return int(count), nil
}

func (r *Repository) DistinctEmailsByIPSince(ctx context.Context, ip string, since time.Time) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("ip_address = ?", strings.TrimSpace(ip)).
		Where("created_at >= ?", since.UTC()).
		Distinct("email").
		Count(&count).
		Error
	if err != nil {
		return 0, r.logError("admission_repo_distinct_emails_by_ip_failed", err)
	}
	return int(count), nil
}

func (r *Repository) CountriesForEmail(ctx context.Context, email string) ([]string, error) {
	var countries []string
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Where("country_code <> ''").
		Distinct().
		Pluck("country_code", &countries).
		Error
	if err != nil {
		return nil, r.logError("admission_repo_countries_for_email_failed", err)
	}
	return countries, nil
}

func (r *Repository) GetContent(ctx context.Context, ref entities.ContentRef) (ports.ContentProjection, error) {
	var row contentEntryModel
	err := r.db.WithContext(ctx).
		Where("content_type = ?", string(ref.Type)).
		Where("content_id = ?", ref.ID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ContentProjection{}, domainerrors.ErrTargetNotFound
		}
		return ports.ContentProjection{}, r.logError("admission_repo_get_content_failed", err,
			"content_type", string(ref.Type),
			"content_id", ref.ID,
		)
	}
	return ports.ContentProjection{
		Ref:      ref,
		Title:    row.Title,
		Status:   row.Status,
		Timezone: row.Timezone,
	}, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := marshalEnvelope(envelope)
	if err != nil {
		return r.logError("admission_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("admission_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("admission_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("admission_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "trust-safety/vote-admission",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("admission repository operation failed", fields...)
	return err
}

type voteModel struct {
	ID                string    `gorm:"column:id;primaryKey"`
	Email             string    `gorm:"column:email;uniqueIndex:idx_votes_email_target_window"`
	DisplayName       string    `gorm:"column:display_name"`
	ContentType       string    `gorm:"column:content_type;uniqueIndex:idx_votes_email_target_window"`
	ContentID         int64     `gorm:"column:content_id;uniqueIndex:idx_votes_email_target_window"`
	IPAddress         string    `gorm:"column:ip_address;index:idx_votes_ip_created"`
	UserAgent         string    `gorm:"column:user_agent"`
	DeviceFingerprint string    `gorm:"column:device_fingerprint;index:idx_votes_fingerprint_created"`
	BotScore          *float64  `gorm:"column:bot_score"`
	CountryCode       string    `gorm:"column:country_code"`
	Region            string    `gorm:"column:region"`
	City              string    `gorm:"column:city"`
	Suspicion         float64   `gorm:"column:suspicion"`
	Flagged           bool      `gorm:"column:flagged"`
	WindowKey         string    `gorm:"column:window_key;uniqueIndex:idx_votes_email_target_window"`
	CreatedAt         time.Time `gorm:"column:created_at;index:idx_votes_ip_created;index:idx_votes_fingerprint_created"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(record entities.VoteRecord) voteModel {
	row := voteModel{
		ID:                strings.TrimSpace(record.VoteID),
		Email:             strings.ToLower(strings.TrimSpace(record.Email)),
		DisplayName:       strings.TrimSpace(record.DisplayName),
		ContentType:       string(record.Target.Type),
		ContentID:         record.Target.ID,
		IPAddress:         strings.TrimSpace(record.IPAddress),
		UserAgent:         strings.TrimSpace(record.UserAgent),
		DeviceFingerprint: strings.TrimSpace(record.DeviceFingerprint),
		BotScore:          record.BotScore,
		CountryCode:       strings.TrimSpace(record.Geo.Country),
		Region:            strings.TrimSpace(record.Geo.Region),
		City:              strings.TrimSpace(record.Geo.City),
		Suspicion:         record.Suspicion,
		Flagged:           record.Flagged,
		WindowKey:         strings.TrimSpace(record.WindowKey),
		CreatedAt:         record.CreatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return row
}

func (m voteModel) toEntity() entities.VoteRecord {
	return entities.VoteRecord{
		VoteID:      m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Target: entities.ContentRef{
			Type: entities.ContentType(m.ContentType),
			ID:   m.ContentID,
		},
		IPAddress:         m.IPAddress,
		UserAgent:         m.UserAgent,
		DeviceFingerprint: m.DeviceFingerprint,
		BotScore:          m.BotScore,
		Geo: entities.GeoLocation{
			Country: m.CountryCode,
			Region:  m.Region,
			City:    m.City,
		},
		Suspicion: m.Suspicion,
		Flagged:   m.Flagged,
		WindowKey: m.WindowKey,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type contentEntryModel struct {
	ContentType string `gorm:"column:content_type;primaryKey"`
	ContentID   int64  `gorm:"column:content_id;primaryKey"`
	Title       string `gorm:"column:title"`
	Status      string `gorm:"column:status"`
	Timezone    string `gorm:"column:timezone"`
}

func (contentEntryModel) TableName() string {
	return "content_entries"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "vote_admission_outbox"
}

func toVoteEntities(rows []voteModel) []entities.VoteRecord {
	items := make([]entities.VoteRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

// Migrate creates or updates the module's tables, including the unique
// index that backs the duplicate-vote guarantee.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&voteModel{}, &contentEntryModel{}, &outboxModel{})
}

func marshalEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SystemClock and UUIDGenerator satisfy the module's clock/ID ports for
// production wiring.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.VoteLedger = (*Repository)(nil)
var _ ports.ContentCatalog = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
