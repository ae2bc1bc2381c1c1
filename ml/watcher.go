package ml

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchArtifact 监听模型文件变更，变更时重置全局模型并触发回调。
// 监听的是所在目录而非文件本身，训练器以重命名方式替换模型文件。
func WatchArtifact(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	zap.L().Info("watching model artifact", zap.String("path", target))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			zap.L().Info("model artifact changed, invalidating",
				zap.String("path", target),
				zap.String("op", event.Op.String()))
			ResetModel()
			if onChange != nil {
				onChange()
			}
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("model watcher error", zap.Error(watchErr))
		}
	}
}
