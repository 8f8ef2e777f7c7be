// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れのセッションと、禁止期間を過ぎた再登録禁止レコードを削除する。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ExpiredPurger は指定時刻で期限切れのレコードを削除し、削除件数を返す。
// repository.SessionRepositoryとrepository.EmailBanRepositoryが実装する。
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	sessions ExpiredPurger
	bans     ExpiredPurger
	logger   *slog.Logger
	now      func() time.Time
}

// Result は1回の実行で削除した件数。
type Result struct {
	Sessions  int64
	EmailBans int64
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions, bans ExpiredPurger, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions: sessions,
		bans:     bans,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は期限切れのセッションと再登録禁止レコードを削除する。
// 片方が失敗してももう片方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	now := j.now()

	var res Result
	var errs []error

	n, err := j.sessions.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge sessions: %w", err))
	}
	res.Sessions = n

	n, err = j.bans.DeleteExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge email bans: %w", err))
	}
	res.EmailBans = n

	if err := errors.Join(errs...); err != nil {
		j.logger.Error("cleanup job failed",
			slog.String("error", err.Error()),
		)
		return res, err
	}

	j.logger.Info("cleanup job completed",
		slog.Int64("deleted_sessions", res.Sessions),
		slog.Int64("deleted_email_bans", res.EmailBans),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return res, nil
}

// Start は起動直後に1回実行し、以降intervalごとにRunを繰り返す。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
