package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"vaultcontrol/internal/models"
	"vaultcontrol/pkg/solana/vault"
)

// getZeroSecondTime 获取当前时间的零秒时间戳
func getZeroSecondTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}

// VaultStatRecorder snapshots vault counters into vault_stats.
type VaultStatRecorder struct {
	db     *gorm.DB
	reader *vault.Reader
	now    func() time.Time
}

func NewVaultStatRecorder(db *gorm.DB, reader *vault.Reader) *VaultStatRecorder {
	return &VaultStatRecorder{db: db, reader: reader, now: time.Now}
}

// RecordVaultStats 记录所有 vault 的统计快照
func (r *VaultStatRecorder) RecordVaultStats(ctx context.Context) (int, error) {
	logger.Info("> 开始记录 vault 统计数据")

	vaults, err := r.reader.ListVaults(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list vaults: %w", err)
	}
	if len(vaults) == 0 {
		logger.Info("> 没有 vault, 跳过")
		return 0, nil
	}

	snapshotAt := getZeroSecondTime(r.now().UTC())
	stats := make([]models.VaultStat, 0, len(vaults))
	for _, v := range vaults {
		stats = append(stats, models.VaultStat{
			Address:        v.Pubkey.String(),
			Name:           vault.DecodeName(v.Name),
			TotalShares:    v.TotalSharesString(),
			TotalDeposits:  v.TotalDeposits,
			TotalWithdraws: v.TotalWithdraws,
			Tvl:            v.TVL(),
			SnapshotAt:     snapshotAt,
		})
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&stats, 100).Error; err != nil {
		return 0, fmt.Errorf("failed to save vault stats: %w", err)
	}

	logger.Infof("> 共记录 %d 个 vault 的统计数据", len(stats))
	return len(stats), nil
}

// Start registers the snapshot job on spec (with seconds) and starts cron.
func (r *VaultStatRecorder) Start(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.RecordVaultStats(ctx); err != nil {
			logger.Errorf("> 记录 vault 统计数据失败: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}

	c.Start()
	logger.Infof("> 定时任务已启动: %s", spec)
	return c, nil
}
