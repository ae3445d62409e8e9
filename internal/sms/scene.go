// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sms

// # Scenes

// Scene is the business context a one-time code was issued for. A code is
// only valid within the scene that issued it; the serialized value is part
// of the cache key and must never change.
type Scene string

const (
	SceneRegister      Scene = "register"
	SceneLogin         Scene = "login"
	SceneResetPassword Scene = "reset_password"
	SceneDeleteUser    Scene = "delete_user"
)

// Valid reports whether the scene is one of the known values.
func (scene Scene) Valid() bool {
	switch scene {
	case SceneRegister, SceneLogin, SceneResetPassword, SceneDeleteUser:
		return true
	default:
		return false
	}
}

// ParseScene resolves a client-supplied string into a [Scene].
// The second result reports whether the value is known.
func ParseScene(value string) (Scene, bool) {
	scene := Scene(value)
	return scene, scene.Valid()
}
