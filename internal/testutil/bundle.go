package testutil

import "fmt"

// ConnBundle builds a bundle with one observation: a network-traffic
// member between two addresses, members keyed by local index.
func ConnBundle(obsID, srcIP, dstIP string, dstPort int) []byte {
	return []byte(fmt.Sprintf(`{
	  "type": "bundle",
	  "objects": [
	    {
	      "type": "observed-data",
	      "id": %q,
	      "first_observed": "2024-03-01T10:00:00Z",
	      "last_observed": "2024-03-01T10:05:00Z",
	      "number_observed": 1,
	      "objects": {
	        "0": {"type": "ipv4-addr", "value": %q},
	        "1": {"type": "ipv4-addr", "value": %q},
	        "2": {
	          "type": "network-traffic",
	          "src_ref": "0",
	          "dst_ref": "1",
	          "dst_port": %d,
	          "protocols": ["tcp"]
	        }
	      }
	    }
	  ]
	}`, obsID, srcIP, dstIP, dstPort))
}

// ConnBundleV6 is ConnBundle with ipv6 endpoints.
func ConnBundleV6(obsID, srcIP, dstIP string, dstPort int) []byte {
	return []byte(fmt.Sprintf(`{
	  "type": "bundle",
	  "objects": [
	    {
	      "type": "observed-data",
	      "id": %q,
	      "first_observed": "2024-03-01T11:00:00Z",
	      "last_observed": "2024-03-01T11:05:00Z",
	      "number_observed": 1,
	      "objects": {
	        "0": {"type": "ipv6-addr", "value": %q},
	        "1": {"type": "ipv6-addr", "value": %q},
	        "2": {
	          "type": "network-traffic",
	          "src_ref": "0",
	          "dst_ref": "1",
	          "dst_port": %d,
	          "protocols": ["tcp"]
	        }
	      }
	    }
	  ]
	}`, obsID, srcIP, dstIP, dstPort))
}

// FileBundle builds a bundle with one observation containing a file with
// nested hash properties.
func FileBundle(obsID, name, sha256 string) []byte {
	return []byte(fmt.Sprintf(`{
	  "type": "bundle",
	  "objects": [
	    {
	      "type": "observed-data",
	      "id": %q,
	      "first_observed": "2024-03-02T08:00:00Z",
	      "last_observed": "2024-03-02T08:00:00Z",
	      "number_observed": 1,
	      "objects": {
	        "0": {
	          "type": "file",
	          "name": %q,
	          "hashes": {"SHA-256": %q}
	        }
	      }
	    }
	  ]
	}`, obsID, name, sha256))
}
