package postgres

import "context"

// CreateSchema applies all pending migrations.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	return s.Migrate(ctx)
}

// DropSchema drops all chat tables and the migrations ledger.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		DROP TABLE IF EXISTS chat_migrations CASCADE;
		DROP TABLE IF EXISTS chat_interactions CASCADE;
		DROP TABLE IF EXISTS chat_users CASCADE;
		DROP TABLE IF EXISTS chat_messages CASCADE;
		DROP TABLE IF EXISTS chat_sessions CASCADE;
	`)
	return err
}
