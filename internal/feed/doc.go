// Package feed implements the discovery-feed ranking pipeline and the home
// feed for the Resonate API.
//
// The discovery pipeline has three stages, executed per request with no
// cross-request state:
//
//	Selector -> Scorer -> Blender -> paginated response
//
// The Selector builds the viewer's exclusion set (self + followed authors,
// resolved to canonical user IDs) and over-fetches recent posts by everyone
// else. The Scorer computes an additive engagement score per candidate from
// like count, author popularity, recency decay, and a bounded random term.
// The Blender sorts by score, preserves the top slice verbatim, and shuffles
// the tail so repeated fetches do not return identical pages.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := feed.LoadCalibration("configs/feed.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	svc := feed.NewService(feed.ServiceConfig{
//		Users:   userRepo,
//		Posts:   postRepo,
//		Weights: weights,
//	})
//	page, err := svc.GetDiscoveryFeed(ctx, viewerID, 1, 20)
//
// Calibration:
//
// The calibration system allows deploy-time tuning of scoring weights via a
// JSON configuration file loaded at startup. Partial configurations are
// merged with defaults. See configs/feed.calibration.json for the default
// configuration.
package feed
