package resolve

// DeclaredTargets returns the known target types for a reference property,
// in preference order. These mirror the standard observable vocabulary;
// unknown references fall back to candidate search in the resolver.
func DeclaredTargets(scoType, refName string) []string {
	switch refName {
	case "parent_ref":
		return []string{"process"}
	case "src_ref", "dst_ref", "src_ip_ref", "dst_ip_ref":
		return []string{"ipv4-addr", "ipv6-addr"}
	case "binary_ref", "image_ref":
		return []string{"file"}
	case "parent_directory_ref":
		return []string{"directory"}
	case "creator_user_ref":
		return []string{"user-account"}
	case "src_payload_ref", "dst_payload_ref":
		return []string{"artifact"}
	case "opened_connection_refs":
		return []string{"network-traffic"}
	case "ip_refs":
		return []string{"ipv4-addr", "ipv6-addr"}
	case "mac_refs":
		return []string{"mac-addr"}
	case "resolves_to_refs":
		if scoType == "ipv4-addr" || scoType == "ipv6-addr" {
			return []string{"mac-addr"}
		}
		return []string{"ipv4-addr", "ipv6-addr"}
	case "x_contained_by_ref":
		return []string{"observed-data"}
	}
	if scoType == "email-message" {
		switch refName {
		case "from_ref", "sender_ref", "to_refs", "cc_refs", "bcc_refs":
			return []string{"email-addr"}
		}
	}
	return nil
}
