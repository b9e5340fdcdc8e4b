package memscene

import (
	"os"
	"path/filepath"
)

// Sample assets for tests and demos.
const (
	// CubeOBJ is a cube and a triangle sharing one textured material.
	CubeOBJ = `# cube
mtllib cube.mtl
o Cube
v -1 -1 -1
v 1 -1 -1
v 1 1 -1
v -1 1 -1
v -1 -1 1
v 1 -1 1
v 1 1 1
v -1 1 1
usemtl red
f 1 2 3 4
f 5 8 7 6
f 1 5 6 2
f 2 6 7 3
f 3 7 8 4
f 5 1 4 8
o Tri
v 3 0 0
v 4 0 0
v 3 1 0
f -3 -2 -1
`

	// CubeMTL is the material library referenced by CubeOBJ.
	CubeMTL = `newmtl red
Kd 0.8 0.1 0.1
map_Kd textures/red.png
map_Bump textures/red_n.png
`

	// LockedRigDocument contains a locked aggregation node wired into
	// host singletons in both directions.
	LockedRigDocument = `{
  "nodes": [
    {"name": "body", "type": "mesh",
     "vertices": [[0,0,0],[1,0,0],[1,1,0],[0,1,0],[0,0,1],[1,0,1]],
     "faces": [[0,1,2,3],[0,1,5,4]], "material": "paint"},
    {"name": "paint", "type": "material", "color": [0.2, 0.4, 0.8], "textures": ["paint_diffuse.png"]},
    {"name": "hwGlobalsProxy", "type": "aggregate", "locked": true},
    {"name": "shotCam", "type": "camera", "focalLength": 50},
    {"name": "key", "type": "light", "lightType": "directional", "intensity": 1.5},
    {"name": "spin", "type": "animCurve", "keys": [[1, 0], [48, 360]], "target": "body"}
  ],
  "connections": [
    {"from": "hwGlobalsProxy.message", "to": "hardwareRenderingGlobals.inputs"},
    {"from": "defaultRenderLayer.renderInfo", "to": "hwGlobalsProxy.renderInfo"}
  ]
}
`

	// NestedRigDocument hides a locked, singleton-connected control in a
	// nested namespace.
	NestedRigDocument = `{
  "nodes": [
    {"name": "base", "type": "mesh",
     "vertices": [[0,0,0],[2,0,0],[2,0,2],[0,0,2]], "faces": [[0,1,2,3]]},
    {"name": "ctrl", "type": "transform", "namespace": "rig", "locked": true},
    {"name": "bounce", "type": "animCurve", "namespace": "rig", "keys": [[10, 0], [20, 1], [30, 0]], "target": "base", "attr": "translateY"}
  ],
  "connections": [
    {"from": "rig:ctrl.message", "to": "defaultLightSet.dagSetMembers"}
  ]
}
`
)

// WriteFixture writes content to dir/name and returns the path. The cube
// material library is written alongside any .obj fixture.
func WriteFixture(dir, name, content string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	if filepath.Ext(name) == ".obj" {
		mtl := filepath.Join(filepath.Dir(path), "cube.mtl")
		if err := os.WriteFile(mtl, []byte(CubeMTL), 0o644); err != nil {
			return "", err
		}
	}
	return path, nil
}
