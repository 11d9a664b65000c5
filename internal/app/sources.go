package app

import (
	"github.com/nhle/notifycore/internal/api"
	"github.com/nhle/notifycore/internal/source/messages"
	"github.com/nhle/notifycore/internal/source/notifications"
	appsync "github.com/nhle/notifycore/internal/sync"
)

// registerSources registers both feed inputs with the poller.
func registerSources(p *appsync.Poller, client *api.Client, userID string) {
	p.RegisterSource(messages.NewAdapter(client, userID))
	p.RegisterSource(notifications.NewAdapter(client, userID))
}
