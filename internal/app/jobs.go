package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/robfig/cron/v3"
	"github.com/voxshop/merchantd/internal/merchantapi"
	"github.com/voxshop/merchantd/pkg/metrics"
	"go.uber.org/zap"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 5m", func() {
		go a.SchedCartSweepTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		go a.SchedDailyExportTask()
		go a.SchedExportCleanupTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}
}

// SchedCartSweepTask evicts idle carts.
func (a *Application) SchedCartSweepTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if evicted := a.cartManager.Sweep(time.Now()); evicted > 0 {
		metrics.Count(metrics.MetricCartsEvicted, evicted)
	}
}

// SchedDailyExportTask writes yesterday's orders to a CSV file under the
// workdir exports directory.
func (a *Application) SchedDailyExportTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	if !a.configManager.GetBool("export", "DailyEnabled") {
		return
	}

	to := time.Now().Truncate(24 * time.Hour)
	from := to.Add(-24 * time.Hour)
	orders, err := a.orderLedger.Store().ListRange(context.Background(), &from, &to)
	if err != nil {
		zap.L().Error("daily export query failed", zap.Error(err))
		return
	}
	if len(orders) == 0 {
		return
	}

	rows := merchantapi.ExportRows(orders)
	path := filepath.Join(a.appConfig.System.Workdir, "exports",
		fmt.Sprintf("orders-%s.csv", from.Format("2006-01-02")))
	f, err := os.Create(path)
	if err != nil {
		zap.L().Error("daily export create failed", zap.Error(err))
		return
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		zap.L().Error("daily export write failed", zap.Error(err))
		return
	}
	zap.L().Info("daily order export written",
		zap.String("path", path),
		zap.Int("orders", len(orders)))
}

// SchedExportCleanupTask removes export files older than the retention
// setting.
func (a *Application) SchedExportCleanupTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	idays := a.configManager.GetInt("export", "HistoryDays")
	if idays == 0 {
		idays = 365
	}
	cutoff := time.Now().Add(-time.Hour * 24 * time.Duration(idays))

	dir := filepath.Join(a.appConfig.System.Workdir, "exports")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}
