package signatures

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// sigSuffixes are the detached signature file names tried next to the data file.
var sigSuffixes = []string{".asc", ".sig"}

// VerifyDetached checks path against a detached OpenPGP signature stored at
// path+".asc" (armored) or path+".sig" (binary).
func VerifyDetached(path, keyringPath string) error {
	keyring, err := readKeyring(keyringPath)
	if err != nil {
		return err
	}

	for _, suffix := range sigSuffixes {
		sigPath := path + suffix
		sig, err := os.ReadFile(sigPath)
		if err != nil {
			continue
		}
		data, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		if suffix == ".asc" {
			_, err = openpgp.CheckArmoredDetachedSignature(keyring, data, bytes.NewReader(sig), nil)
		} else {
			_, err = openpgp.CheckDetachedSignature(keyring, data, bytes.NewReader(sig), nil)
		}
		data.Close()
		if err != nil {
			return fmt.Errorf("signature verification failed: %w", err)
		}
		return nil
	}
	return errors.New("no detached signature found")
}

func readKeyring(path string) (openpgp.EntityList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(raw))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to read keyring: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, errors.New("keyring contains no keys")
	}
	return entities, nil
}
