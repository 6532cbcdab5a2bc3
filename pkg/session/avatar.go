package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxAvatarSize caps the downloaded image.
const maxAvatarSize = 5 << 20

// AvatarURL returns the profile image location for info.
func AvatarURL(info *UserInfo) string {
	return strings.TrimRight(info.Server, "/") + "/identity/profile/images/" + url.PathEscape(info.UserID) + ".jpg"
}

// FetchAvatar downloads the account's profile image. The result is cached
// until the session ends. It returns nil when the identity is incomplete
// or the download fails; failures are logged only.
func (m *Manager) FetchAvatar(ctx context.Context) []byte {
	info := m.UserInfo(ctx)
	if !info.Complete() {
		return nil
	}

	token := m.Snapshot().SessionToken
	m.mu.RLock()
	if m.avatar != nil && m.avatarToken == token {
		cached := m.avatar
		m.mu.RUnlock()
		return cached
	}
	m.mu.RUnlock()

	data, err := m.download(ctx, AvatarURL(info))
	if err != nil {
		m.logger.Warn("Avatar download failed", "error", err)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Only cache if the session did not change during the download.
	if m.state.SessionToken == token {
		m.avatar = data
		m.avatarToken = token
	}
	return data
}

func (m *Manager) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrNetwork, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrNetwork)
	}
	return data, nil
}
