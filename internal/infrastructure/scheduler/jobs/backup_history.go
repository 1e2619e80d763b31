package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/jsonfile"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKUP HISTORY JOB
// Снимок истории в JSON с отметкой времени и ротацией старых копий.
// ══════════════════════════════════════════════════════════════════════════════

const (
	backupPrefix = "matches-"
	backupSuffix = ".json"
)

// BackupHistoryConfig - параметры резервного копирования.
type BackupHistoryConfig struct {
	Dir string
	// Retention - сколько последних снимков хранить (0 = все).
	Retention int
}

// BackupHistoryJob пишет снимок истории в каталог резервных копий.
type BackupHistoryJob struct {
	store  match.HistoryStore
	clock  timeutil.Clock
	log    *logger.Logger
	config BackupHistoryConfig
}

// NewBackupHistoryJob создаёт задачу.
func NewBackupHistoryJob(store match.HistoryStore, clock timeutil.Clock, log *logger.Logger, config BackupHistoryConfig) *BackupHistoryJob {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &BackupHistoryJob{
		store:  store,
		clock:  clock,
		log:    log.With(logger.Component("backup_history")),
		config: config,
	}
}

// Name implements scheduler.Job.
func (j *BackupHistoryJob) Name() string {
	return "backup_history"
}

// Run implements scheduler.Job.
func (j *BackupHistoryJob) Run(ctx context.Context) error {
	path, count, err := j.Backup(ctx)
	if err != nil {
		return err
	}

	removed, err := j.prune()
	if err != nil {
		j.log.Warn("prune backups", logger.Err(err))
	}

	j.log.Info("history backed up",
		logger.String("path", path),
		logger.Int("matches", count),
		logger.Int("pruned", removed),
	)
	return nil
}

// Backup пишет один снимок и возвращает путь к нему.
func (j *BackupHistoryJob) Backup(ctx context.Context) (string, int, error) {
	records, err := j.store.Load(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("backup_history: load: %w", err)
	}

	doc := jsonfile.NewDocument(records)
	data, err := jsonfile.Encode(doc)
	if err != nil {
		return "", 0, fmt.Errorf("backup_history: %w", err)
	}

	path := filepath.Join(j.config.Dir, backupPrefix+timeutil.FileStamp(j.clock.Now())+backupSuffix)
	if err := jsonfile.WriteFileAtomic(path, data); err != nil {
		return "", 0, fmt.Errorf("backup_history: write: %w", err)
	}
	return path, len(doc.Matches), nil
}

// prune удаляет самые старые снимки сверх Retention.
func (j *BackupHistoryJob) prune() (int, error) {
	if j.config.Retention <= 0 {
		return 0, nil
	}

	backups, err := ListBackups(j.config.Dir)
	if err != nil {
		return 0, err
	}
	if len(backups) <= j.config.Retention {
		return 0, nil
	}

	removed := 0
	for _, name := range backups[:len(backups)-j.config.Retention] {
		if err := os.Remove(filepath.Join(j.config.Dir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ListBackups возвращает имена снимков в каталоге, от старых к новым.
// Файлы с неразборчивой отметкой времени игнорируются.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
		if _, err := timeutil.ParseFileStamp(stamp); err != nil {
			continue
		}
		names = append(names, name)
	}
	// FileStamp сортируется лексикографически так же, как по времени.
	slices.Sort(names)
	return names, nil
}
