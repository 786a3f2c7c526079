package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*ConfigStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	return store, tmpDir
}

func TestNewConfigStore_Success(t *testing.T) {
	store, tmpDir := newTestStore(t)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(home, ".intake", "config.toml"), store.Path())

	// Cleanup
	_ = os.Remove(store.Path())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("data_dir", "/var/lib/intake"))
	require.NoError(t, store.Set("preview_dpi", 150))
	require.NoError(t, store.Set("expand_archives", true))

	assert.Equal(t, "/var/lib/intake", store.GetString("data_dir"))
	assert.Equal(t, 150, store.GetInt("preview_dpi"))
	assert.True(t, store.GetBool("expand_archives"))

	// Missing keys yield zero values.
	assert.Equal(t, "", store.GetString("scanner_device"))
	assert.Equal(t, 0, store.GetInt("page_limit"))
	assert.False(t, store.GetBool("verbose"))

	// A key of the wrong type does too.
	assert.Equal(t, 0, store.GetInt("data_dir"))
	assert.False(t, store.GetBool("preview_dpi"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("cabinets", []string{"invoices", "contracts"}))

	assert.Equal(t, []string{"invoices", "contracts"}, store.GetStringSlice("cabinets"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store, _ := newTestStore(t)

	val, ok := store.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestConfigStore_Persistence(t *testing.T) {
	store, tmpDir := newTestStore(t)

	require.NoError(t, store.Set("data_dir", "/srv/intake"))
	require.NoError(t, store.Set("preview_dpi", 72))
	require.NoError(t, store.Set("expand_archives", true))

	// A new instance over the same directory loads the saved file.
	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "/srv/intake", reloaded.GetString("data_dir"))
	assert.Equal(t, 72, reloaded.GetInt("preview_dpi"))
	assert.True(t, reloaded.GetBool("expand_archives"))
}

func TestConfigStore_GetInt_Int64FromTOML(t *testing.T) {
	store, _ := newTestStore(t)

	// TOML unmarshals integers as int64.
	store.mu.Lock()
	store.data["preview_dpi"] = int64(300)
	store.mu.Unlock()

	assert.Equal(t, 300, store.GetInt("preview_dpi"))
}

func TestConfigStore_OverwriteValue(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("scanner_device", "epson:net"))
	require.NoError(t, store.Set("scanner_device", "test:0"))
	assert.Equal(t, "test:0", store.GetString("scanner_device"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("data_dir", "/srv/intake"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte{}, 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	val, ok := store.Get("data_dir")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"),
		[]byte("this is not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_Load_ReadFileError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file modes do not restrict root")
	}
	store, _ := newTestStore(t)

	require.NoError(t, store.Set("data_dir", "/srv/intake"))
	require.NoError(t, os.Chmod(store.Path(), 0000))
	defer os.Chmod(store.Path(), 0600) //nolint:errcheck

	err := store.Load()
	assert.Error(t, err)
	assert.False(t, os.IsNotExist(err))
}

func TestConfigStore_SetUnmarshallableValue(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Set("channel", make(chan int))
	assert.Error(t, err)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, _ := newTestStore(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := "key" + string(rune('0'+id))
			_ = store.Set(key, id)
			_ = store.GetInt(key)
			_ = store.GetString(key)
			_, _ = store.Get(key)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
