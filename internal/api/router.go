package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/obscyra/rooms/docs"
	"github.com/obscyra/rooms/internal/api/handlers"
	"github.com/obscyra/rooms/internal/api/middleware"
	"github.com/obscyra/rooms/internal/config"
	"github.com/rs/cors"
)

// route wraps a handler with the global rate limit, then a route-class
// rate limit keyed by IP, per §4.D ("Overload Guard → per-route Rate
// Guard → ...").
func route(routeClass string, rule config.RateLimitRule, h http.HandlerFunc) http.Handler {
	var wrapped http.Handler = h
	wrapped = middleware.RateGuard(routeClass, rule, middleware.ByIP)(wrapped)
	wrapped = middleware.RateGuard("global", config.Envs.RateLimit.Global, middleware.ByIP)(wrapped)
	return wrapped
}

func SetupRouter() http.Handler {
	mainMux := http.NewServeMux()
	c := cors.New(config.Envs.CorsConfig)
	rl := config.Envs.RateLimit

	mainMux.HandleFunc("/api/health", handlers.Health)
	mainMux.HandleFunc("/docs/", httpSwagger.WrapHandler)

	mainMux.Handle("/api/rooms", route("room_access", rl.RoomAccess, handlers.CreateRoom))
	mainMux.Handle("/api/rooms/verify-password", route("room_access", rl.RoomAccess, handlers.VerifyRoomPassword))
	mainMux.Handle("/api/verify-author", route("room_access", rl.RoomAccess, handlers.VerifyAuthor))

	mainMux.Handle("/api/room-access", route("room_access", rl.RoomAccess, handlers.JoinRoom))
	mainMux.Handle("/api/room-access/presence", route("presence", rl.PresenceHeartbeat, handlers.Heartbeat))
	mainMux.Handle("/api/room-access/leave", route("presence", rl.PresenceHeartbeat, handlers.LeaveRoom))
	mainMux.Handle("/api/room-access/activity/{room}", route("activity", rl.ActivityFeed, handlers.ActivityFeed))
	mainMux.Handle("/api/room-capacity/{room}", route("activity", rl.ActivityFeed, handlers.RoomCapacity))

	mainMux.Handle("/api/presigned-upload", route("presigned", rl.PresignMint, handlers.PresignedUpload))
	mainMux.Handle("/api/multipart-upload/initiate", route("upload_init", rl.Upload, handlers.InitiateMultipartUpload))
	mainMux.Handle("/api/multipart-upload/get-part-urls", route("upload_init", rl.Upload, handlers.GetPartUploadURLs))
	mainMux.Handle("/api/multipart-upload/complete", route("upload_init", rl.Upload, handlers.CompleteMultipartUpload))
	mainMux.Handle("/api/multipart-upload/abort", route("upload_init", rl.Upload, handlers.AbortMultipartUpload))
	mainMux.Handle("/api/update-file/{id}", route("upload_init", rl.Upload, handlers.UpdateFile))
	mainMux.Handle("/api/delete-file/{id}", route("delete", rl.Delete, handlers.DeleteFile))
	mainMux.Handle("/api/delete-room/{id}", route("delete", rl.Delete, handlers.DeleteRoom))

	mainMux.Handle("/api/download", route("download", rl.Download, handlers.MintDownload))
	mainMux.Handle("/api/download/start", route("download", rl.Download, handlers.DownloadStart))
	mainMux.Handle("/api/download/end", route("download", rl.Download, handlers.DownloadEnd))
	mainMux.Handle("/api/download/bulk-mark", route("download", rl.Download, handlers.BulkMark))
	mainMux.Handle("/api/preview", route("download", rl.Download, handlers.Preview))
	mainMux.Handle("/api/bulk-download", route("download", rl.Download, handlers.BulkDownload))

	mainMux.Handle("/api/access-logs/{room}", route("activity", rl.ActivityFeed, handlers.AccessLogs))
	mainMux.Handle("/api/invite", route("invite", rl.InviteGlobal, handlers.SendInvite))

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/live", handlers.AnalyticsLive)
	adminMux.HandleFunc("/rooms", handlers.AnalyticsRooms)
	mainMux.Handle("/api/analytics/",
		http.StripPrefix("/api/analytics",
			middleware.RateGuard("admin", rl.AnalyticsAdmin, middleware.ByIP)(
				middleware.AdminBearer(adminMux),
			),
		),
	)
	mainMux.Handle("/api/analytics-admin/",
		http.StripPrefix("/api/analytics-admin",
			middleware.RateGuard("admin", rl.AnalyticsAdmin, middleware.ByIP)(
				middleware.AdminBearer(adminMux),
			),
		),
	)

	handler := c.Handler(mainMux)
	handler = middleware.Logger(handler)
	return handler
}
