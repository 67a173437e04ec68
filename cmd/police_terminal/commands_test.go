package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/config"
	"github.com/jonathan/police-terminal/internal/host"
	"github.com/jonathan/police-terminal/internal/sources"
	"github.com/jonathan/police-terminal/internal/store"
	"github.com/jonathan/police-terminal/internal/types"
)

const testPage = `<html><body><div id="chat">
<div class="person-location-张三">警察局</div>
<div class="person-location-李四">商业街</div>
</div></body></html>`

const testChat = `{"user_name":"officer","character_name":"dispatch"}
{"name":"officer","is_user":true,"mes":"@查看地图"}
{"name":"dispatch","is_user":false,"mes":"<div class=\"person-location-王五\">码头</div>"}
`

func TestScopeFor(t *testing.T) {
	tests := []struct {
		mode        string
		scope       sources.Scope
		requireData bool
		wantErr     bool
	}{
		{"live", sources.ScopeLive, false, false},
		{"update", sources.ScopeLatest, false, false},
		{"", sources.ScopeLatest, false, false},
		{"force", sources.ScopeFull, true, false},
		{"everything", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			scope, opts, err := scopeFor(tt.mode)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.scope, scope)
			assert.Equal(t, tt.requireData, opts.RequireData)
		})
	}
}

func TestParseScope(t *testing.T) {
	sc, err := parseScope("recent")
	require.NoError(t, err)
	assert.Equal(t, sources.ScopeRecent, sc)

	_, err = parseScope("all")
	assert.Error(t, err)
}

func TestControllerOptions(t *testing.T) {
	rc := config.Defaults().Refresh
	opts, err := controllerOptions(rc)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, opts.Debounce)
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, "@查看地图", opts.Commands[types.PanelMap])
	assert.Equal(t, "@查看新闻", opts.Commands[types.PanelNews])
	assert.Equal(t, []string{"位置", "所在地"}, opts.MapKeywords)

	rc.Commands = map[string]string{"radio": "@x"}
	_, err = controllerOptions(rc)
	assert.Error(t, err)
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("POLICE_TERMINAL_CONFIG", "")
	t.Setenv("POLICE_TERMINAL_DATABASE_URL", "")
	c, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults().Server.Addr, c.Server.Addr)
	assert.Equal(t, config.HostModeFile, c.Host.Mode)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\nserver:\n  addr: 127.0.0.1:9999\n"), 0o600))
	t.Setenv("POLICE_TERMINAL_CONFIG", path)
	t.Setenv("POLICE_TERMINAL_DATABASE_URL", "")

	c, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", c.Server.Addr)
	assert.Equal(t, config.DriverMemory, c.Storage.Driver)
	assert.Equal(t, "", c.Storage.DSN)
}

func TestLoadConfig_DatabaseURLFromEnv(t *testing.T) {
	t.Setenv("POLICE_TERMINAL_CONFIG", "")
	t.Setenv("POLICE_TERMINAL_DATABASE_URL", "postgres://officer@localhost/terminal")

	c, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, config.DriverPostgres, c.Storage.Driver)
	assert.Equal(t, "postgres://officer@localhost/terminal", c.Storage.DSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terminal.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host":{"mode":"http"}}`), 0o600))

	_, err := loadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_url")
}

func TestOpenHost_FileMode(t *testing.T) {
	pagePath, chatPath := writeHostFiles(t, testPage, testChat)
	ctx := context.Background()

	conn, err := openHost(ctx, config.HostConfig{Mode: config.HostModeFile, PageFile: pagePath, ChatLog: chatPath}, zap.NewNop())
	require.NoError(t, err)
	defer conn.Close()

	assert.IsType(t, host.NoopSender{}, conn.sender)
	fragments := sources.NewAggregator(conn.live, conn.history, nil).Collect(ctx, types.DomainLocation, sources.ScopeFull)
	require.Len(t, fragments, 3, "live page plus two messages")
	assert.Equal(t, types.OriginLive, fragments[0].Origin)
	assert.Contains(t, fragments[1].HTML, "王五")
}

func TestOpenHost_UnknownMode(t *testing.T) {
	_, err := openHost(context.Background(), config.HostConfig{Mode: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

func TestHostConn_WatchChatLog(t *testing.T) {
	pagePath, chatPath := writeHostFiles(t, testPage, testChat)
	conn, err := openHost(context.Background(), config.HostConfig{PageFile: pagePath, ChatLog: chatPath}, zap.NewNop())
	require.NoError(t, err)

	got := make(chan types.ChatMessage, 4)
	stop, err := conn.watch(context.Background(), func(m types.ChatMessage) { got <- m })
	require.NoError(t, err)
	defer stop()

	f, err := os.OpenFile(chatPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"name":"dispatch","is_user":false,"mes":"新位置"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case m := <-got:
		assert.Equal(t, "新位置", m.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("appended message was not reported")
	}
}

func TestHostConn_WatchWithoutSource(t *testing.T) {
	conn, err := openHost(context.Background(), config.HostConfig{}, zap.NewNop())
	require.NoError(t, err)

	stop, err := conn.watch(context.Background(), func(types.ChatMessage) {})
	require.NoError(t, err)
	require.NotNil(t, stop)
	stop()
}

func TestScanCommand_SavesSnapshot(t *testing.T) {
	pagePath, chatPath := writeHostFiles(t, testPage, testChat)
	dbPath := filepath.Join(t.TempDir(), "terminal.db")
	cfgPath := filepath.Join(t.TempDir(), "terminal.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  driver: sqlite\n  dsn: "+dbPath+"\n"), 0o600))

	t.Cleanup(resetFlags)

	rootCmd.SetArgs([]string{"scan", "--config", cfgPath, "--page", pagePath, "--chat", chatPath, "--mode", "force", "--save", "--json"})
	require.NoError(t, rootCmd.Execute())

	kv, err := store.OpenSQLite(context.Background(), dbPath)
	require.NoError(t, err)
	defer kv.Close()

	records, found, err := store.NewSnapshots(kv, nil).Load(context.Background(), types.DomainLocation)
	require.NoError(t, err)
	require.True(t, found)

	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"张三", "李四", "王五"}, names)
}

func TestHashPasscodeCommand(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")
	t.Cleanup(resetFlags)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader("7421\n"))
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetIn(nil)

	rootCmd.SetArgs([]string{"hash-passcode"})
	require.NoError(t, rootCmd.Execute())

	hash := strings.TrimSpace(out.String())
	passcodes := &config.PasscodeConfig{BcryptCost: 10}
	assert.True(t, passcodes.VerifyPasscode("7421", hash))
}

func TestHashPasscodeCommand_TooShort(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Cleanup(resetFlags)
	rootCmd.SetArgs([]string{"hash-passcode", "12"})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, config.ErrPasscodeTooShort)
}
