package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/config"
	"github.com/dshills/lexbridge/internal/token"
)

func newWatchCmd(c *cli) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "watch file",
		Short: "Re-tokenize a file whenever it changes",
		Long: `Watch submits the file to the debounced coordinator on every save and
prints each delivered revision. It also follows config file changes. Stop it
with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			l, err := resolveLanguage(lang, path)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if cfgPath := c.configPath(); cfgPath != "" {
				cw, err := config.Watch(cfgPath, config.WithWatchLogger(s.logger))
				if err != nil {
					return err
				}
				defer cw.Close()
				s.bridge.Follow(cw)
			}

			fsw, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer fsw.Close()
			if err := fsw.Add(filepath.Dir(path)); err != nil {
				return err
			}

			var mu sync.Mutex
			submitted := make(map[uint64]time.Time)
			sess := s.bridge.Session()
			unregister := s.bridge.OnHighlightUpdate(func(st token.Stream) {
				mu.Lock()
				at, ok := submitted[st.Revision()]
				delete(submitted, st.Revision())
				mu.Unlock()

				latency := ""
				if ok {
					latency = " in " + time.Since(at).Round(time.Microsecond).String()
				}
				fmt.Fprintf(c.stdout, "rev %d: %d tokens via %s%s\n", st.Revision(), st.Len(), st.Backend(), latency)
			})
			defer unregister()

			submit := func() {
				b, err := os.ReadFile(path)
				if err != nil {
					s.logger.Warn("read %s: %v", path, err)
					return
				}
				rev := sess.Next()
				mu.Lock()
				submitted[rev] = time.Now()
				mu.Unlock()
				sess.SubmitBytes(l, b, rev)
			}
			submit()

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-fsw.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(ev.Name) == path && (ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create)) {
						submit()
					}
				case err, ok := <-fsw.Errors:
					if !ok {
						return nil
					}
					s.logger.Warn("watch %s: %v", path, err)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "source language (default: from extension)")
	return cmd
}
