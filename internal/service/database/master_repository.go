package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lcwen/tcm-pipeline-go/internal/domain"
	"go.uber.org/zap"
)

type MasterRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMasterRepository(postgres *PostgresService, logger *zap.Logger) *MasterRepository {
	return &MasterRepository{
		db:     postgres.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the master table and its indexes when missing.
func (r *MasterRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS herb_ingredient_master (
			id SERIAL PRIMARY KEY,
			herb_id INTEGER NOT NULL,
			herb_chinese TEXT,
			herb_pinyin TEXT,
			herb_latin TEXT,
			herb_english TEXT,
			properties_chinese TEXT,
			properties_english TEXT,
			meridians_chinese TEXT,
			meridians_english TEXT,
			class_chinese TEXT,
			class_english TEXT,
			tcmsp_id TEXT,
			mol_id INTEGER,
			molecule_name TEXT,
			molecule_formula TEXT,
			molecule_weight TEXT,
			pubchem_cid TEXT,
			cas_id TEXT,
			ob_score TEXT,
			molecule_type TEXT,
			herb_aliases TEXT,
			molecule_aliases TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_master_herb_id ON herb_ingredient_master (herb_id)`,
		`CREATE INDEX IF NOT EXISTS idx_master_mol_id ON herb_ingredient_master (mol_id)`,
		`CREATE INDEX IF NOT EXISTS idx_master_pubchem_cid ON herb_ingredient_master (pubchem_cid)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure master schema: %w", err)
		}
	}
	return nil
}

// ReplaceAll swaps the table contents for the given records in a single
// transaction, so a failed run never leaves a half-written table.
func (r *MasterRepository) ReplaceAll(ctx context.Context, records []domain.MasterRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin master transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `TRUNCATE herb_ingredient_master`); err != nil {
		return fmt.Errorf("failed to truncate master table: %w", err)
	}

	const insert = `
		INSERT INTO herb_ingredient_master (
			herb_id, herb_chinese, herb_pinyin, herb_latin, herb_english,
			properties_chinese, properties_english, meridians_chinese, meridians_english,
			class_chinese, class_english, tcmsp_id,
			mol_id, molecule_name, molecule_formula, molecule_weight,
			pubchem_cid, cas_id, ob_score, molecule_type,
			herb_aliases, molecule_aliases
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare master insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		_, err := stmt.ExecContext(ctx,
			rec.HerbID, nullString(rec.HerbChinese), nullString(rec.HerbPinyin),
			nullString(rec.HerbLatin), nullString(rec.HerbEnglish),
			nullString(rec.PropertiesCN), nullString(rec.PropertiesEN),
			nullString(rec.MeridiansCN), nullString(rec.MeridiansEN),
			nullString(rec.ClassCN), nullString(rec.ClassEN), nullString(rec.TCMSPID),
			nullInt(rec.MolID), nullString(rec.MoleculeName), nullString(rec.MoleculeFormula),
			nullString(rec.MoleculeWeight), nullString(rec.PubChemCID), nullString(rec.CASID),
			nullString(rec.OBScore), nullString(rec.MoleculeType),
			nullString(rec.HerbAliases), nullString(rec.MoleculeAliases),
		)
		if err != nil {
			return fmt.Errorf("failed to insert master record for herb %d: %w", rec.HerbID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit master records: %w", err)
	}

	r.logger.Info("Master table exported to PostgreSQL", zap.Int("records", len(records)))
	return nil
}

// Count reports how many master records the table currently holds.
func (r *MasterRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM herb_ingredient_master`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count master records: %w", err)
	}
	return count, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
