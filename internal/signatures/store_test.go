package signatures

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	md5Bad    = "44d88612fea8a8f36de82e1278abb02f"
	sha256Bad = "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Malware dataset.csv",
		"id,Hash,family\n"+
			"1,"+strings.ToUpper(md5Bad)+",EICAR\n"+
			"2, "+sha256Bad+" ,\n"+
			"3,not-a-hash,Junk\n"+
			"4\n")

	set := Load(path)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(md5Bad))
	assert.True(t, set.Contains(strings.ToUpper(sha256Bad)))
	assert.False(t, set.Contains("not-a-hash"))

	name, ok := set.Lookup(md5Bad)
	assert.True(t, ok)
	assert.Equal(t, "EICAR", name)
	assert.Contains(t, set.Stats(), "Known Bad: 2")
}

func TestLoad_FailuresYieldEmptySet(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"missing":       filepath.Join(dir, "nope.csv"),
		"no hash col":   writeFile(t, dir, "nohash.csv", "md5,name\n"+md5Bad+",x\n"),
		"empty file":    writeFile(t, dir, "empty.csv", ""),
		"broken quotes": writeFile(t, dir, "broken.csv", "hash\n\"unterminated\n"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			set := Load(path)
			require.NotNil(t, set)
			assert.Zero(t, set.Len())
			assert.False(t, set.Contains(md5Bad))
		})
	}
}

func TestFromHashes(t *testing.T) {
	set := FromHashes(" "+strings.ToUpper(md5Bad), "xyz", sha256Bad)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(md5Bad))

	var nilSet *Set
	assert.False(t, nilSet.Contains(md5Bad))
	assert.Zero(t, nilSet.Len())
}

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("warden test", "", "test@example.invalid",
		&packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	require.NoError(t, err)
	return entity
}

func TestLoad_WithKeyring(t *testing.T) {
	dir := t.TempDir()
	content := "hash\n" + md5Bad + "\n"
	path := writeFile(t, dir, "signatures.csv", content)

	entity := newTestEntity(t)
	var pub bytes.Buffer
	require.NoError(t, entity.Serialize(&pub))
	keyring := writeFile(t, dir, "keyring.gpg", pub.String())

	// no signature yet
	assert.Zero(t, Load(path, WithKeyring(keyring)).Len())

	var sig bytes.Buffer
	require.NoError(t, openpgp.ArmoredDetachSign(&sig, entity, strings.NewReader(content), nil))
	writeFile(t, dir, "signatures.csv.asc", sig.String())

	assert.Equal(t, 1, Load(path, WithKeyring(keyring)).Len())

	// tampered data no longer verifies
	require.NoError(t, os.WriteFile(path, []byte(content+sha256Bad+"\n"), 0o600))
	assert.Zero(t, Load(path, WithKeyring(keyring)).Len())
}

func TestVerifyDetached_BadKeyring(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "signatures.csv", "hash\n")

	err := VerifyDetached(path, filepath.Join(dir, "missing.gpg"))
	assert.ErrorContains(t, err, "failed to open keyring")

	junk := writeFile(t, dir, "junk.gpg", "not a key")
	err = VerifyDetached(path, junk)
	assert.ErrorContains(t, err, "failed to read keyring")
}
