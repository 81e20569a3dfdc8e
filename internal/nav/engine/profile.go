package engine

import "crowdnav/internal/config"

// profileConstants holds the damping/falloff constants distinguishing the
// two velocity-synthesis profiles (§4.8, §9).
type profileConstants struct {
	dampingK     float64
	quadraticFalloff bool
	jitterEnabled    bool
}

func constantsFor(p config.Profile) profileConstants {
	if p == config.ProfileLegacy {
		return profileConstants{dampingK: 3, quadraticFalloff: false, jitterEnabled: false}
	}
	return profileConstants{dampingK: 4, quadraticFalloff: true, jitterEnabled: true}
}
