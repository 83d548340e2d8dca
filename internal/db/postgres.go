package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/citysafe/planning-backend/internal/platform/envutil"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	dsn := envutil.Str("DATABASE_URL", "")
	if dsn == "" {
		host := envutil.Str("DB_HOST", "localhost")
		port := envutil.Str("DB_PORT", "5432")
		user := envutil.Str("DB_USER", "postgres")
		password := envutil.Str("DB_PASSWORD", "")
		name := envutil.Str("DB_NAME", "planning")
		sslmode := envutil.Str("DB_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
	}

	log.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	return nil
}

// AutoMigrate is shared with the in-memory test databases so tests run
// against the same schema as production.
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&types.User{},
		&types.UserToken{},
		&types.Problem{},
		&types.ProblemIndicatorData{},
		&types.Cause{},
		&types.CauseAnnex{},
		&types.CauseProblemLink{},
		&types.CauseIndicator{},
		&types.CauseIndicatorData{},
		&types.Initiative{},
		&types.InitiativeAnnex{},
		&types.InitiativeCauseLink{},
		&types.InitiativeCauseProblemLink{},
		&types.InitiativePrioritization{},
		&types.InitiativeOutcome{},
		&types.InitiativeOutcomeLink{},
		&types.MunicipalDepartment{},
		&types.Neighborhood{},
		&types.Plan{},
		&types.MacroObjective{},
		&types.MacroObjectiveProblemLink{},
		&types.MacroObjectiveGoal{},
		&types.MacroObjectiveCustomIndicator{},
		&types.Focus{},
		&types.FocusCauseIndicatorLink{},
		&types.FocusGoal{},
		&types.FocusCustomIndicator{},
		&types.ProblemDiagnosis{},
		&types.CauseIndicatorDiagnosis{},
		&types.TacticalDimension{},
		&types.TacticalGoal{},
		&types.TacticalDepartmentRole{},
	)
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
