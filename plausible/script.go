package plausible

import (
	"context"
	"fmt"
	"net/http"
)

// relayScript streams the provider script back to the client. When the
// provider can't be reached the request continues down the pipeline.
func (i *Interceptor) relayScript(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	remoteIP := ResolveRemoteIP(r, i.remoteIPHeaders)

	resp, err := i.fetchScript(r.Context(), BuildRequestHeaders(r.UserAgent(), remoteIP))
	if err != nil {
		i.logger.Error().
			Err(err).
			Str("url", i.scriptURL).
			Msg("plausible_proxy failed to GET script, passing request through")

		next(w, r)

		return
	}
	defer resp.Body.Close()

	i.writeUpstreamResponse(w, resp, i.scriptURL)
}

// fetchScript requests the provider script with the given headers
func (i *Interceptor) fetchScript(ctx context.Context, headers []HeaderField) (*http.Response, error) {
	return i.send(ctx, http.MethodGet, i.scriptURL, headers, http.NoBody)
}

// CheckProvider probes the provider script url, returning error (if any)
// if the provider can't be reached or answers with a server error
func (i *Interceptor) CheckProvider(ctx context.Context) error {
	resp, err := i.send(ctx, http.MethodHead, i.scriptURL, nil, http.NoBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("provider responded %d to HEAD %s", resp.StatusCode, i.scriptURL)
	}

	return nil
}
