package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/scopestat/clog"
	"github.com/ceyewan/scopestat/xerrors"
)

// loader 实现 Loader 接口
type loader struct {
	v       *viper.Viper
	cfg     *Config
	logger  clog.Logger
	mu      sync.Mutex
	watches map[string][]*watch
}

// watch 一个订阅者，closed 保证通道只关闭一次
type watch struct {
	ch     chan Event
	old    any
	closed bool
}

// newLoader 创建一个新的配置加载器（内部使用）
func newLoader(cfg *Config) *loader {
	return &loader{
		v:       viper.New(),
		cfg:     cfg,
		logger:  cfg.Logger,
		watches: make(map[string][]*watch),
	}
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)
	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 环境变量最高优先级，metrics.port -> SCOPESTAT_METRICS_PORT
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.loadDotEnv(); err != nil {
		l.logger.Debug("no .env file loaded", clog.Error(err))
	}

	found := true
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return xerrors.Wrapf(err, "failed to read config file %s", l.cfg.Name)
		}
		found = false
		l.logger.Warn("no configuration file found", clog.String("name", l.cfg.Name))
	}

	if err := l.loadEnvironmentConfig(); err != nil {
		return err
	}

	if err := l.Validate(); err != nil {
		return err
	}

	if found {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if err := l.loadEnvironmentConfig(); err != nil {
				l.logger.Error("reload environment config failed", clog.Error(err))
			}
			l.notifyWatches(e)
		})
		l.v.WatchConfig()
	}
	return nil
}

// loadDotEnv 尝试从工作目录及搜索路径加载 .env 文件
func (l *loader) loadDotEnv() error {
	var loaded bool
	var lastErr error

	candidates := []string{".env"}
	for _, path := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}
	for _, p := range candidates {
		if err := godotenv.Load(p); err != nil {
			lastErr = err
			continue
		}
		loaded = true
	}

	if !loaded {
		return lastErr
	}
	return nil
}

// loadEnvironmentConfig 加载 <name>.<env> 环境特定配置，env 来自 <PREFIX>_ENV
func (l *loader) loadEnvironmentConfig() error {
	env := os.Getenv(fmt.Sprintf("%s_ENV", l.cfg.EnvPrefix))
	if env == "" {
		return nil
	}

	envConfigName := fmt.Sprintf("%s.%s", l.cfg.Name, env)
	l.v.SetConfigName(envConfigName)
	defer l.v.SetConfigName(l.cfg.Name)

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return xerrors.Wrapf(err, "failed to merge environment config %s", envConfigName)
		}
		l.logger.Info("no environment configuration file", clog.String("env", env))
		return nil
	}
	l.logger.Info("loaded environment configuration", clog.String("env", env))
	return nil
}

// Get 根据 key 获取配置值
func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

// IsSet 判断 key 是否已配置
func (l *loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// Unmarshal 将整个配置反序列化到结构体
func (l *loader) Unmarshal(v any) error {
	return l.v.Unmarshal(v)
}

// UnmarshalKey 将特定配置 key 反序列化到结构体
func (l *loader) UnmarshalKey(key string, v any) error {
	return l.v.UnmarshalKey(key, v)
}

// Watch 订阅特定配置 key 的变更
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Wrap(ErrKeyNotFound, "empty watch key")
	}

	w := &watch{ch: make(chan Event, 10), old: l.v.Get(key)}

	l.mu.Lock()
	l.watches[key] = append(l.watches[key], w)
	l.mu.Unlock()

	context.AfterFunc(ctx, func() {
		l.removeWatch(key, w)
	})
	return w.ch, nil
}

// removeWatch 从注册表中移除监听并关闭通道
func (l *loader) removeWatch(key string, w *watch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ws := l.watches[key]
	for i, cur := range ws {
		if cur == w {
			l.watches[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
	}
	if !w.closed {
		w.closed = true
		close(w.ch)
	}
}

// Validate 验证配置
func (l *loader) Validate() error {
	if len(l.v.AllSettings()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

// notifyWatches 通知值发生变化的 key 的所有订阅者
func (l *loader) notifyWatches(_ fsnotify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, ws := range l.watches {
		value := l.v.Get(key)
		for _, w := range ws {
			if reflect.DeepEqual(w.old, value) {
				continue
			}
			event := Event{Key: key, Value: value, OldValue: w.old, Source: "file", Timestamp: now}
			w.old = value
			select {
			case w.ch <- event:
			default:
				l.logger.Warn("watch channel is full, event dropped", clog.String("key", key))
			}
		}
	}
}
