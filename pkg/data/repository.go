package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("duplicate record")
	ErrInvalidFilter = errors.New("invalid filter parameters")
)

// Repository defines the interface for archiving voting instances
type Repository interface {
	// Instance operations
	SaveInstance(ctx context.Context, record *InstanceRecord) error
	GetInstance(ctx context.Context, identifier uint64) (*InstanceRecord, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]*InstanceRecord, error)
	FinalizeInstance(ctx context.Context, identifier uint64, status string, tally int64, finalizedAt time.Time) error

	// Ballot operations
	SaveBallot(ctx context.Context, ballot *BallotRecord) error
	GetBallotsByInstance(ctx context.Context, identifier uint64) ([]*BallotRecord, error)
	GetBallotsByParticipant(ctx context.Context, participant string) ([]*BallotRecord, error)
}

// InstanceFilter defines filter parameters for instance queries
type InstanceFilter struct {
	Status         string
	Initiator      string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	DeadlineBefore *time.Time
	Limit          int
	Offset         int
}

// PostgresRepository implements Repository interface using PostgreSQL
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a new PostgreSQL repository instance
func NewPostgresRepository(ctx context.Context, connStr string, logger *zap.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresRepository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close releases all database resources
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// SaveInstance persists a voting instance record
func (r *PostgresRepository) SaveInstance(ctx context.Context, record *InstanceRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validating instance record: %w", err)
	}

	query := `
		INSERT INTO voting_instances (
			identifier, status, initiator, deadline, tally,
			config_data, decision_data, created_at, finalized_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.pool.Exec(ctx, query,
		record.Identifier, record.Status, record.Initiator, record.Deadline,
		record.Tally, record.ConfigData, record.DecisionData,
		record.CreatedAt, record.FinalizedAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting voting instance: %w", err)
	}

	return nil
}

// GetInstance retrieves a voting instance record by identifier
func (r *PostgresRepository) GetInstance(ctx context.Context, identifier uint64) (*InstanceRecord, error) {
	query := `
		SELECT identifier, status, initiator, deadline, tally,
			   config_data, decision_data, created_at, finalized_at
		FROM voting_instances
		WHERE identifier = $1`

	record := &InstanceRecord{}
	err := r.pool.QueryRow(ctx, query, identifier).Scan(
		&record.Identifier, &record.Status, &record.Initiator, &record.Deadline,
		&record.Tally, &record.ConfigData, &record.DecisionData,
		&record.CreatedAt, &record.FinalizedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying voting instance: %w", err)
	}

	return record, nil
}

// ListInstances retrieves instance records based on filter criteria
func (r *PostgresRepository) ListInstances(ctx context.Context, filter InstanceFilter) ([]*InstanceRecord, error) {
	query := `
		SELECT identifier, status, initiator, deadline, tally,
			   config_data, decision_data, created_at, finalized_at
		FROM voting_instances
		WHERE 1=1`

	args := make([]interface{}, 0)
	argCount := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filter.Status)
		argCount++
	}

	if filter.Initiator != "" {
		query += fmt.Sprintf(" AND initiator = $%d", argCount)
		args = append(args, filter.Initiator)
		argCount++
	}

	if filter.CreatedAfter != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.CreatedAfter)
		argCount++
	}

	if filter.CreatedBefore != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filter.CreatedBefore)
		argCount++
	}

	if filter.DeadlineBefore != nil {
		query += fmt.Sprintf(" AND deadline < $%d", argCount)
		args = append(args, *filter.DeadlineBefore)
		argCount++
	}

	query += " ORDER BY identifier"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
		argCount++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying voting instances: %w", err)
	}
	defer rows.Close()

	records := make([]*InstanceRecord, 0)
	for rows.Next() {
		record := &InstanceRecord{}
		if err := rows.Scan(
			&record.Identifier, &record.Status, &record.Initiator, &record.Deadline,
			&record.Tally, &record.ConfigData, &record.DecisionData,
			&record.CreatedAt, &record.FinalizedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning voting instance: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating voting instances: %w", err)
	}

	return records, nil
}

// FinalizeInstance records the terminal status and frozen tally of an instance
func (r *PostgresRepository) FinalizeInstance(ctx context.Context, identifier uint64, status string, tally int64, finalizedAt time.Time) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("%w: %s is not terminal", ErrInvalidStatus, status)
	}

	query := `
		UPDATE voting_instances
		SET status = $2, tally = $3, finalized_at = $4
		WHERE identifier = $1 AND status = $5`

	tag, err := r.pool.Exec(ctx, query, identifier, status, tally, finalizedAt, StatusActive)
	if err != nil {
		return fmt.Errorf("finalizing voting instance: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveBallot persists a counted ballot
func (r *PostgresRepository) SaveBallot(ctx context.Context, ballot *BallotRecord) error {
	if err := ballot.Validate(); err != nil {
		return fmt.Errorf("validating ballot record: %w", err)
	}

	query := `
		INSERT INTO ballots (
			id, identifier, participant, approve, cast_at
		) VALUES (
			$1, $2, $3, $4, $5
		)`

	_, err := r.pool.Exec(ctx, query,
		ballot.ID, ballot.Identifier, ballot.Participant, ballot.Approve, ballot.CastAt,
	)

	if err != nil {
		if isPgDuplicateError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting ballot: %w", err)
	}

	return nil
}

// GetBallotsByInstance retrieves all counted ballots for an instance
func (r *PostgresRepository) GetBallotsByInstance(ctx context.Context, identifier uint64) ([]*BallotRecord, error) {
	query := `
		SELECT id, identifier, participant, approve, cast_at
		FROM ballots
		WHERE identifier = $1
		ORDER BY cast_at`

	return r.queryBallots(ctx, query, identifier)
}

// GetBallotsByParticipant retrieves all counted ballots cast by a participant
func (r *PostgresRepository) GetBallotsByParticipant(ctx context.Context, participant string) ([]*BallotRecord, error) {
	query := `
		SELECT id, identifier, participant, approve, cast_at
		FROM ballots
		WHERE participant = $1
		ORDER BY cast_at`

	return r.queryBallots(ctx, query, participant)
}

func (r *PostgresRepository) queryBallots(ctx context.Context, query string, arg interface{}) ([]*BallotRecord, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying ballots: %w", err)
	}
	defer rows.Close()

	ballots := make([]*BallotRecord, 0)
	for rows.Next() {
		ballot := &BallotRecord{}
		if err := rows.Scan(
			&ballot.ID, &ballot.Identifier, &ballot.Participant,
			&ballot.Approve, &ballot.CastAt,
		); err != nil {
			return nil, fmt.Errorf("scanning ballot: %w", err)
		}
		ballots = append(ballots, ballot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ballots: %w", err)
	}

	return ballots, nil
}

// isPgDuplicateError checks for a unique constraint violation
func isPgDuplicateError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
