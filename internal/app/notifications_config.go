package app

import (
	"github.com/charlesng35/taskflow/internal/app/maintenance"
	"github.com/charlesng35/taskflow/internal/notifications"
	"github.com/charlesng35/taskflow/internal/services"
)

// ServiceConfig converts the notifications section into inbox paging settings.
func (c NotificationsConfig) ServiceConfig() services.NotificationServiceConfig {
	return services.NotificationServiceConfig{
		DefaultPageSize: c.DefaultPageSize,
		MaxPageSize:     c.MaxPageSize,
	}
}

// EngineOptions converts the notifications section into engine options.
func (c NotificationsConfig) EngineOptions() []notifications.EngineOption {
	var opts []notifications.EngineOption
	if c.DeliveryTimeout > 0 {
		opts = append(opts, notifications.WithDeliveryTimeout(c.DeliveryTimeout))
	}
	return opts
}

// TaskServiceConfig converts the notifications section into overdue settings.
func (c NotificationsConfig) TaskServiceConfig() services.TaskServiceConfig {
	return services.TaskServiceConfig{OverdueRenotify: c.OverdueRenotify}
}

// MaintenanceOptions converts the notifications section into cleaner options.
func (c NotificationsConfig) MaintenanceOptions() []maintenance.Option {
	return []maintenance.Option{
		maintenance.WithRetentionDays(c.RetentionDays),
		maintenance.WithCleanupSchedule(c.CleanupSchedule),
		maintenance.WithOverdueSchedule(c.OverdueSchedule),
	}
}
