package collector

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/types"
)

const (
	metadataKeyModified = "lastModified"
	metadataKeyMode     = "mode"

	timestampLayout = "2006-01-02 15:04"

	warningSkipSubdirectoryMessage = "skipping unreadable subdirectory"
	warningStatMessage             = "unable to stat entry"
)

// Local enumerates a directory tree on the local filesystem.
type Local struct {
	rootPath string
	excludes *exclusion.Set
	logger   *zap.Logger
}

// NewLocal constructs a Local collector for the given root directory.
// A nil logger disables warnings for skipped subtrees.
func NewLocal(rootPath string, excludes *exclusion.Set, logger *zap.Logger) *Local {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Local{rootPath: rootPath, excludes: excludes, logger: logger}
}

// Collect walks the root directory recursively and returns one entry per
// discovered object. Exclusion is applied at listing time: an excluded
// directory is skipped together with its entire subtree. Subdirectories that
// cannot be read are reported as warnings and the walk continues over their
// siblings. A root that does not exist or cannot be opened is fatal.
func (local *Local) Collect(ctx context.Context) ([]types.PathEntry, error) {
	absoluteRootPath, absoluteError := filepath.Abs(local.rootPath)
	if absoluteError != nil {
		return nil, WrapError(KindInput, absoluteError, "resolving absolute path for %s", local.rootPath)
	}
	rootInformation, statError := os.Stat(absoluteRootPath)
	if statError != nil {
		if os.IsNotExist(statError) {
			return nil, WrapError(KindNotFound, statError, "path %s does not exist", absoluteRootPath)
		}
		return nil, WrapError(KindIO, statError, "stating root %s", absoluteRootPath)
	}
	if !rootInformation.IsDir() {
		return nil, NewError(KindInput, "path %s is not a directory", absoluteRootPath)
	}

	var entries []types.PathEntry
	walkError := local.walkDirectory(ctx, absoluteRootPath, nil, &entries, true)
	if walkError != nil {
		return nil, walkError
	}
	return entries, nil
}

// walkDirectory lists one directory level and recurses into subdirectories.
// The isRoot flag makes a read failure on the root itself fatal while read
// failures below the root degrade to warnings.
func (local *Local) walkDirectory(ctx context.Context, directoryPath string, parentSegments []string, accumulator *[]types.PathEntry, isRoot bool) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}
	directoryEntries, readError := os.ReadDir(directoryPath)
	if readError != nil {
		if isRoot {
			if os.IsPermission(readError) {
				return WrapError(KindIO, readError, "permission denied reading root %s", directoryPath)
			}
			return WrapError(KindIO, readError, "reading directory %s", directoryPath)
		}
		local.logger.Warn(warningSkipSubdirectoryMessage,
			zap.String("path", directoryPath),
			zap.Error(readError),
		)
		return nil
	}

	for _, directoryEntry := range directoryEntries {
		segments := append(append([]string(nil), parentSegments...), directoryEntry.Name())
		relativePath := strings.Join(segments, "/")
		if local.excludes.Matches(relativePath) {
			continue
		}

		entry := types.PathEntry{Segments: segments}
		entryInformation, informationError := directoryEntry.Info()
		if informationError != nil {
			local.logger.Warn(warningStatMessage,
				zap.String("path", filepath.Join(directoryPath, directoryEntry.Name())),
				zap.Error(informationError),
			)
		} else {
			entry.Metadata = map[string]string{
				metadataKeyModified: entryInformation.ModTime().Format(timestampLayout),
				metadataKeyMode:     entryInformation.Mode().String(),
			}
		}

		if directoryEntry.IsDir() {
			entry.Kind = types.NodeTypeDirectory
			*accumulator = append(*accumulator, entry)
			childPath := filepath.Join(directoryPath, directoryEntry.Name())
			if walkError := local.walkDirectory(ctx, childPath, segments, accumulator, false); walkError != nil {
				return walkError
			}
			continue
		}

		entry.Kind = types.NodeTypeFile
		if informationError == nil {
			entry.SizeBytes = entryInformation.Size()
		}
		*accumulator = append(*accumulator, entry)
	}
	return nil
}

var _ Collector = (*Local)(nil)
