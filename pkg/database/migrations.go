package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dealdrop/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const migrationsCollection = "schema_migrations"

// Migration creates named indexes. Down drops exactly those names, so a
// migration never touches indexes it did not create.
type Migration struct {
	Version     int
	Description string
	Indexes     []CollectionIndexes
}

type CollectionIndexes struct {
	Collection string
	Models     []mongo.IndexModel
}

type appliedMigration struct {
	Version     int       `bson:"_id"`
	Description string    `bson:"description"`
	AppliedAt   time.Time `bson:"applied_at"`
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	logger     *logger.Logger
}

func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{db: db, migrations: Migrations(), logger: log}
}

// Up applies every migration above the recorded version. Index creation is
// idempotent, so two instances starting together are safe.
func (m *Migrator) Up(ctx context.Context) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		log := m.logger.WithField("migration", migration.Version)
		log.Info(migration.Description)

		for _, ci := range migration.Indexes {
			if _, err := m.db.Collection(ci.Collection).Indexes().CreateMany(ctx, ci.Models); err != nil {
				return fmt.Errorf("migration %d: indexes on %s: %w", migration.Version, ci.Collection, err)
			}
		}

		_, err := m.db.Collection(migrationsCollection).InsertOne(ctx, appliedMigration{
			Version:     migration.Version,
			Description: migration.Description,
			AppliedAt:   time.Now().UTC(),
		})
		if err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("migration %d: record: %w", migration.Version, err)
		}
	}
	return nil
}

// Down reverts migrations newer than target, newest first.
func (m *Migrator) Down(ctx context.Context, target int) error {
	current, err := m.Version(ctx)
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version > current || migration.Version <= target {
			continue
		}
		m.logger.Infof("Reverting migration %d: %s", migration.Version, migration.Description)

		for _, ci := range migration.Indexes {
			for _, model := range ci.Models {
				name := *model.Options.Name
				_, err := m.db.Collection(ci.Collection).Indexes().DropOne(ctx, name)
				if err != nil && !isIndexNotFound(err) {
					return fmt.Errorf("migration %d: drop %s.%s: %w", migration.Version, ci.Collection, name, err)
				}
			}
		}

		if _, err := m.db.Collection(migrationsCollection).DeleteOne(ctx, bson.M{"_id": migration.Version}); err != nil {
			return fmt.Errorf("migration %d: unrecord: %w", migration.Version, err)
		}
	}
	return nil
}

// Version is the highest applied migration, or 0 on a fresh database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var applied appliedMigration
	err := m.db.Collection(migrationsCollection).
		FindOne(ctx, bson.D{}, options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})).
		Decode(&applied)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return applied.Version, nil
}

func isIndexNotFound(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && (cmdErr.Code == 27 || cmdErr.Name == "IndexNotFound")
}

func index(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

func uniqueIndex(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name).SetUnique(true)}
}

// uniqueWhenSet indexes a string field that is absent until assigned.
func uniqueWhenSet(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: field, Value: 1}},
		Options: options.Index().
			SetName(field + "_unique").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{field: bson.M{"$type": "string"}}),
	}
}

func asc(fields ...string) bson.D {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return keys
}

// Migrations lists the schema in version order. Claim credential and
// payment reference uniqueness is enforced here, not in application code.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Users and vendors",
			Indexes: []CollectionIndexes{
				{Collection: "users", Models: []mongo.IndexModel{
					uniqueIndex("email_unique", asc("email")),
					index("user_type", asc("user_type")),
				}},
				{Collection: "vendors", Models: []mongo.IndexModel{
					uniqueIndex("owner_unique", asc("owner_id")),
				}},
			},
		},
		{
			Version:     2,
			Description: "Deals by vendor and expiry",
			Indexes: []CollectionIndexes{
				{Collection: "deals", Models: []mongo.IndexModel{
					index("vendor_status", asc("vendor_id", "status")),
					index("status_expiry", asc("status", "expires_at")),
				}},
			},
		},
		{
			Version:     3,
			Description: "Claim credentials and lookups",
			Indexes: []CollectionIndexes{
				{Collection: "claims", Models: []mongo.IndexModel{
					uniqueWhenSet("redemption_code"),
					uniqueWhenSet("qr_code"),
					uniqueWhenSet("payment_reference"),
					uniqueWhenSet("checkout_session_id"),
					uniqueIndex("session_token_unique", asc("session_token")),
					index("deal_customer_redeemed", asc("deal_id", "customer_id", "redeemed")),
					index("customer_recent", bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}),
					index("abandoned_checkout", asc("payment_tier", "deposit_confirmed", "checkout_expires_at")),
				}},
			},
		},
		{
			Version:     4,
			Description: "One redemption per claim",
			Indexes: []CollectionIndexes{
				{Collection: "redemptions", Models: []mongo.IndexModel{
					uniqueIndex("claim_unique", asc("claim_id")),
					index("vendor_recent", bson.D{{Key: "vendor_id", Value: 1}, {Key: "redeemed_at", Value: -1}}),
				}},
			},
		},
		{
			Version:     5,
			Description: "Loyalty programs, cards and stamps",
			Indexes: []CollectionIndexes{
				{Collection: "loyalty_programs", Models: []mongo.IndexModel{
					index("vendor_active", asc("vendor_id", "is_active")),
				}},
				{Collection: "loyalty_cards", Models: []mongo.IndexModel{
					uniqueIndex("program_customer_unique", asc("program_id", "customer_id")),
				}},
				{Collection: "loyalty_transactions", Models: []mongo.IndexModel{
					uniqueIndex("redemption_unique", asc("redemption_id")),
					index("card_recent", bson.D{{Key: "card_id", Value: 1}, {Key: "created_at", Value: -1}}),
				}},
			},
		},
		{
			Version:     6,
			Description: "Admin audit trail",
			Indexes: []CollectionIndexes{
				{Collection: "audit_logs", Models: []mongo.IndexModel{
					index("resource_recent", bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "created_at", Value: -1}}),
					index("user_recent", bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}),
				}},
			},
		},
	}
}
