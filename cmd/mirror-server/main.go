// Command mirror-server serves upstream add-on manifests from a directory so
// configurations can be tried locally without real add-ons.
//
// GET /<name>/manifest.json serves <dir>/<name>.json.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aiostreams/internal/logging"
	"aiostreams/pkg/models"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func newRouter(dir string, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/:name/manifest.json", func(c *gin.Context) {
		name := c.Param("name")
		if !validName.MatchString(name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid manifest name"})
			return
		}

		b, err := os.ReadFile(filepath.Join(dir, name+".json"))
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{"error": "manifest not found"})
				return
			}
			logger.Error("cannot read manifest", zap.String("name", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot read manifest"})
			return
		}

		// a bad fixture should fail here, not inside the engine
		var m models.Manifest
		if err := json.Unmarshal(b, &m); err != nil {
			logger.Error("invalid manifest", zap.String("name", name), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid manifest: " + err.Error()})
			return
		}

		c.Data(http.StatusOK, "application/json", b)
	})
	return r
}

func main() {
	addr := flag.String("addr", ":9000", "listen address")
	dir := flag.String("dir", "data/manifests", "directory of <name>.json manifests")
	flag.Parse()

	logger, err := logging.New("info", "console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("mirror-server listening", zap.String("addr", *addr), zap.String("dir", *dir))
	if err := http.ListenAndServe(*addr, newRouter(*dir, logger)); err != nil {
		logger.Fatal("mirror-server stopped", zap.Error(err))
	}
}
