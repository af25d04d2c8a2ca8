// Package handlers implements the §6 HTTP surface, wired against the
// component packages built for every [MODULE] in §4.
package handlers

import (
	"gorm.io/gorm"

	"github.com/obscyra/rooms/internal/accesslog"
	"github.com/obscyra/rooms/internal/auth"
	"github.com/obscyra/rooms/internal/config"
	"github.com/obscyra/rooms/internal/download"
	"github.com/obscyra/rooms/internal/invite"
	"github.com/obscyra/rooms/internal/presence"
	"github.com/obscyra/rooms/internal/quota"
	"github.com/obscyra/rooms/internal/ratelimit"
	"github.com/obscyra/rooms/internal/repositories"
	"github.com/obscyra/rooms/internal/room"
	"github.com/obscyra/rooms/internal/upload"
)

// Deps is every collaborator a handler may need, generalized from the
// teacher's package-level repositories.DB/ObjectStoreClient globals into a
// single struct so the full dependency graph is visible and swappable in
// tests, set once via Init from cmd/server/main.go.
type Deps struct {
	DB        *gorm.DB
	Store     repositories.ObjectStore
	Auth      *auth.Store
	Presence  *presence.Store
	Capacity  *presence.Capacity
	Quota     *quota.Engine
	Upload    *upload.Orchestrator
	Download  *download.Coordinator
	Archiver  *download.Archiver
	Lifecycle *room.Engine
	Invite    *invite.Flow
	AccessLog *accesslog.Logger
	Limiter   *ratelimit.Limiter
	Overload  *ratelimit.OverloadGuard
	Cfg       config.Config
}

// D is the process-wide dependency set, set once at startup. Handlers are
// package-level functions, per the teacher's convention, so they all close
// over D rather than threading a context struct through every signature.
var D *Deps

func Init(d *Deps) {
	D = d
}
