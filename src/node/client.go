package node

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// getJSON performs a GET against a peer and decodes the JSON response into
// out. The node's http.Client carries the configured peer timeout, so an
// unresponsive peer cannot stall the caller.
func (n *Node) getJSON(url string, out interface{}) error {
	resp, err := n.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// postJSON performs a POST with a JSON body against a peer, optionally
// decoding the response into out.
func (n *Node) postJSON(url string, body interface{}, out interface{}) error {
	buf := bytes.NewBuffer([]byte{})
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return err
	}

	resp, err := n.client.Post(url, "application/json", buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
