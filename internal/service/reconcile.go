// reconcile.go — сверка бакета с таблицей images.
//
// Обнаруживает проблемы:
//   - orphaned_object: объект в бакете без записи (старше grace-периода)
//   - missing_object: запись, для которой нет объекта в бакете
//
// Осиротевшие объекты удаляются, только если это явно включено.
// Записи автоматически не трогаются никогда.
//
// Запускается по cron-расписанию (HNF_RECONCILE_SCHEDULE) и вручную через hnfctl.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

// Типы проблем сверки (значения лейбла type).
const (
	IssueOrphanedObject = "orphaned_object"
	IssueMissingObject  = "missing_object"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hnf_reconcile_runs_total",
		Help: "Общее количество запусков сверки хранилища",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hnf_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой хранилища",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hnf_reconcile_duration_seconds",
		Help:    "Длительность сверки хранилища в секундах",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})
)

// ObjectKeyLister — источник ключей объектов из базы.
type ObjectKeyLister interface {
	ListObjectKeys(ctx context.Context) ([]string, error)
}

// ReconcileOptions — параметры сверки.
type ReconcileOptions struct {
	// Folder — префикс ключей изображений
	Folder string
	// Grace — объекты моложе не считаются осиротевшими
	Grace time.Duration
	// DeleteOrphans — удалять осиротевшие объекты
	DeleteOrphans bool
}

// ReconcileReport — результат одного прогона сверки.
type ReconcileReport struct {
	StartedAt      time.Time
	Duration       time.Duration
	ObjectsScanned int
	RecordsScanned int
	// Orphaned — ключи объектов без записи
	Orphaned []string
	// Missing — ключи записей без объекта
	Missing []string
	// Deleted — удалённые осиротевшие объекты
	Deleted []string
}

// ReconcileService — сервис сверки хранилища.
type ReconcileService struct {
	keys   ObjectKeyLister
	store  ObjectStore
	opts   ReconcileOptions
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cron      *cron.Cron
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(keys ObjectKeyLister, store ObjectStore, opts ReconcileOptions, logger *slog.Logger) *ReconcileService {
	return &ReconcileService{
		keys:   keys,
		store:  store,
		opts:   opts,
		logger: logger.With(slog.String("component", "reconcile")),
		now:    time.Now,
	}
}

// Start запускает сверку по cron-расписанию. Пустое расписание: no-op.
func (rs *ReconcileService) Start(ctx context.Context, schedule string) error {
	if schedule == "" {
		return nil
	}

	cl := cronLogger{logger: rs.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := rs.RunOnce(ctx); err != nil {
			rs.logger.Error("Ошибка сверки хранилища", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("некорректное расписание сверки %q: %w", schedule, err)
	}

	rs.cron = c
	c.Start()
	rs.logger.Info("Сверка хранилища запущена по расписанию",
		slog.String("schedule", schedule),
		slog.Bool("delete_orphans", rs.opts.DeleteOrphans),
	)
	return nil
}

// Stop останавливает расписание и дожидается текущего прогона.
func (rs *ReconcileService) Stop() {
	if rs.cron == nil {
		return
	}
	<-rs.cron.Stop().Done()
	rs.logger.Info("Сверка хранилища остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// RunOnce выполняет одну сверку. Если сверка уже идёт, возвращает ErrReconcileInProgress.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	if rs.store == nil {
		return nil, ErrStorageNotConfigured
	}

	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, ErrReconcileInProgress
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: rs.now()}
	reconcileRunsTotal.Inc()
	defer func() {
		report.Duration = rs.now().Sub(report.StartedAt)
		reconcileDurationSeconds.Observe(report.Duration.Seconds())
	}()

	// Ключи из базы читаются до листинга бакета: параллельная загрузка
	// видна только как свежий объект без записи
	dbKeys, err := rs.keys.ListObjectKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключей из базы: %w", err)
	}
	objects, err := rs.store.List(ctx, rs.opts.Folder+"/")
	if err != nil {
		return nil, fmt.Errorf("ошибка листинга бакета: %w", err)
	}
	report.ObjectsScanned = len(objects)
	report.RecordsScanned = len(dbKeys)

	known := make(map[string]struct{}, len(dbKeys))
	for _, k := range dbKeys {
		known[k] = struct{}{}
	}
	inBucket := make(map[string]struct{}, len(objects))
	cutoff := report.StartedAt.Add(-rs.opts.Grace)

	for _, obj := range objects {
		inBucket[obj.Key] = struct{}{}
		if _, ok := known[obj.Key]; ok {
			continue
		}
		// Объект мог быть загружен только что, запись ещё в пути
		if obj.LastModified.After(cutoff) {
			continue
		}
		report.Orphaned = append(report.Orphaned, obj.Key)
	}
	for _, k := range dbKeys {
		if _, ok := inBucket[k]; !ok {
			report.Missing = append(report.Missing, k)
		}
	}
	sort.Strings(report.Orphaned)
	sort.Strings(report.Missing)

	reconcileIssuesTotal.WithLabelValues(IssueOrphanedObject).Add(float64(len(report.Orphaned)))
	reconcileIssuesTotal.WithLabelValues(IssueMissingObject).Add(float64(len(report.Missing)))

	for _, key := range report.Orphaned {
		rs.logger.Warn("Осиротевший объект в бакете", slog.String("key", key))
	}
	for _, key := range report.Missing {
		rs.logger.Error("Запись ссылается на отсутствующий объект", slog.String("key", key))
	}

	if rs.opts.DeleteOrphans {
		for _, key := range report.Orphaned {
			if err := rs.store.Delete(ctx, key); err != nil {
				rs.logger.Warn("Не удалось удалить осиротевший объект",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				continue
			}
			report.Deleted = append(report.Deleted, key)
		}
	}

	rs.logger.Info("Сверка хранилища завершена",
		slog.Int("objects", report.ObjectsScanned),
		slog.Int("records", report.RecordsScanned),
		slog.Int("orphaned", len(report.Orphaned)),
		slog.Int("missing", len(report.Missing)),
		slog.Int("deleted", len(report.Deleted)),
	)
	return report, nil
}

// cronLogger — адаптер slog для cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
