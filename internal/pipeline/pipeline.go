// Package pipeline implements the Scoring Pipeline: the ingress consumer,
// the concordance worker, and the originality worker pool.
// A Pipeline bundles the collaborators every stage needs — the Metadata
// Gateway, the Blob Cache, the queue triad, the Round Feature Engine, and
// the submission cache — as an application-scoped object passed by handle
// rather than module-scope globals.
package pipeline

import (
	"github.com/sirupsen/logrus"

	"github.com/numerai/scoring-engine/internal/blobcache"
	"github.com/numerai/scoring-engine/internal/metadata"
	"github.com/numerai/scoring-engine/internal/queue"
	"github.com/numerai/scoring-engine/internal/roundfeatures"
)

// Pipeline holds the collaborators the ingress consumer, concordance
// worker, and originality workers all share.
type Pipeline struct {
	Gateway metadata.Gateway
	Blobs   *blobcache.Cache
	Queues  *queue.Triad
	Engine  *roundfeatures.Engine
	Subs    *SubmissionCache

	log *logrus.Logger
}

// New builds a Pipeline from its collaborators.
func New(gateway metadata.Gateway, blobs *blobcache.Cache, queues *queue.Triad, engine *roundfeatures.Engine, subs *SubmissionCache, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		Gateway: gateway,
		Blobs:   blobs,
		Queues:  queues,
		Engine:  engine,
		Subs:    subs,
		log:     log,
	}
}
