package registry

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	platformerrors "vpntrack-server-go/internal/platform/errors"
)

// digestSize is the fixed BLAKE2b output length; 16 bytes hex-encode to
// the 32-character suffix of every credential.
const digestSize = 16

// Parse errors, distinguished so callers can tell a structurally broken
// credential from one with a non-numeric application id.
var (
	ErrMissingSeparator = platformerrors.New(
		platformerrors.KindCredential, "parse", "missing ':' separator")
	ErrMalformedAppID = platformerrors.New(
		platformerrors.KindCredential, "parse", "application id is not numeric")
)

// GenerateToken mints a credential of the form "<appID>:<hex digest>".
// The digest mixes the owning user id with the current wall clock in
// milliseconds; neither input is secret, they only diversify the hash.
// Collision resistance comes from BLAKE2b, not from construction.
func GenerateToken(appID uint64, userID int64) string {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		// Only reachable with an invalid digest size, which is constant.
		panic(err)
	}
	fmt.Fprintf(h, "%d%d", userID, time.Now().UnixMilli())
	return fmt.Sprintf("%d:%s", appID, hex.EncodeToString(h.Sum(nil)))
}

// ParseCredential extracts the application id prefix. The remainder is
// never re-derived here; the worker validates the full string by byte
// comparison against the stored token.
func ParseCredential(credential string) (uint64, error) {
	idPart, _, found := strings.Cut(credential, ":")
	if !found {
		return 0, ErrMissingSeparator
	}
	appID, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, ErrMalformedAppID
	}
	return appID, nil
}
