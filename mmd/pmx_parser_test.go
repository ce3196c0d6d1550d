package mmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fixture builds .pmx bytes by hand. Text is written as UTF-8.
type fixture struct {
	bytes.Buffer
}

func (f *fixture) u8(v ...byte) {
	f.Write(v)
}

func (f *fixture) u16(v uint16) {
	binary.Write(&f.Buffer, binary.LittleEndian, v)
}

func (f *fixture) i32(v ...int32) {
	binary.Write(&f.Buffer, binary.LittleEndian, v)
}

func (f *fixture) f32(v ...float32) {
	binary.Write(&f.Buffer, binary.LittleEndian, v)
}

func (f *fixture) text(s string) {
	f.i32(int32(len(s)))
	f.WriteString(s)
}

func (f *fixture) header(version float32, info ...byte) {
	f.WriteString(pmxMagic)
	f.f32(version)
	f.u8(byte(len(info)))
	f.u8(info...)
}

func (f *fixture) modelInfo(name string) {
	f.text(name)
	f.text("")
	f.text("")
	f.text("")
}

// empty writes n zero counts.
func (f *fixture) empty(n int) {
	for i := 0; i < n; i++ {
		f.i32(0)
	}
}

func TestParseMinimal(t *testing.T) {
	var f fixture
	f.u8(0x50, 0x4d, 0x58, 0x20)
	f.f32(2.0)
	f.u8(8, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("test")
	// vertices
	f.i32(1)
	f.f32(0, 0, 0, 0, 1, 0, 0, 0)
	f.u8(0, 5)
	f.f32(1)
	// faces
	f.i32(3)
	f.u8(0, 0, 0)
	// textures .. joints
	f.empty(7)

	doc, err := Parse(&f)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Name != "test" {
		t.Errorf("name: %q", doc.Name)
	}
	if doc.Header.Encoding != UTF8 || doc.Header.Version != Version20 {
		t.Errorf("header: %+v", doc.Header)
	}
	if len(doc.Vertexes) != 1 {
		t.Fatalf("vertexes: %d", len(doc.Vertexes))
	}
	v := doc.Vertexes[0]
	if v.Pos != (Vector3{}) || v.Normal != (Vector3{Y: 1}) || v.UV != (Vector2{}) || len(v.ExtUVs) != 0 {
		t.Errorf("vertex: %+v", v)
	}
	if v.Weight.Type != WeightBDEF1 || len(v.Weight.Bones) != 1 || v.Weight.Bones[0] != 5 {
		t.Errorf("weight: %+v", v.Weight)
	}
	if len(doc.Faces) != 1 || doc.Faces[0].Verts != [3]int{0, 0, 0} {
		t.Errorf("faces: %v", doc.Faces)
	}
	if len(doc.Textures)+len(doc.Materials)+len(doc.Bones)+len(doc.Morphs)+len(doc.Frames)+len(doc.RigidBodies)+len(doc.Joints) != 0 {
		t.Error("sections should be empty")
	}
	if doc.SoftBodies != nil {
		t.Error("2.0 has no soft bodies")
	}
}

func TestParseAbsentBone(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.i32(1)
	f.f32(0, 0, 0, 0, 1, 0, 0, 0)
	f.u8(0, 0xff)
	f.f32(1)
	f.empty(8)

	doc, err := Parse(&f)
	if err != nil {
		t.Fatal(err)
	}
	if b := doc.Vertexes[0].Weight.Bones[0]; b != -1 {
		t.Errorf("0xff bone index should be -1, got %d", b)
	}
}

// vertexFixture returns the bytes up to and including a vertex section with
// one vertex using the given weight tag and bone index width 2.
func vertexFixture(uvs byte, tag byte) []byte {
	var f fixture
	f.header(Version21, 1, uvs, 1, 1, 1, 2, 1, 1)
	f.modelInfo("")
	f.i32(1)
	f.f32(1, 2, 3, 0, 1, 0, 0.5, 0.5)
	for i := byte(0); i < uvs; i++ {
		f.f32(float32(i), 1, 2, 3)
	}
	f.u8(tag)
	switch tag {
	case 0:
		f.u16(7)
	case 1:
		f.u16(7)
		f.u16(8)
		f.f32(0.25)
	case 2, 4:
		f.u16(7)
		f.u16(8)
		f.u16(9)
		f.u16(0xffff)
		f.f32(0.1, 0.2, 0.3, 0.4)
	case 3:
		f.u16(7)
		f.u16(8)
		f.f32(0.25)
		f.f32(1, 1, 1, 2, 2, 2, 3, 3, 3)
	default:
		f.u16(7)
	}
	f.f32(1.5)
	return f.Bytes()
}

func TestWeightDispatch(t *testing.T) {
	cases := []struct {
		tag     byte
		typ     WeightType
		bones   []int
		weights []float32
	}{
		{0, WeightBDEF1, []int{7}, []float32{1}},
		{1, WeightBDEF2, []int{7, 8}, []float32{0.25, 0.75}},
		{2, WeightBDEF4, []int{7, 8, 9, -1}, []float32{0.1, 0.2, 0.3, 0.4}},
		{3, WeightSDEF, []int{7, 8}, []float32{0.25, 0.75}},
		{4, WeightQDEF, []int{7, 8, 9, -1}, []float32{0.1, 0.2, 0.3, 0.4}},
	}
	for _, c := range cases {
		t.Run(c.typ.String(), func(t *testing.T) {
			data := vertexFixture(0, c.tag)
			s, err := Open(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			_, vs, err := s.Read()
			if err != nil {
				t.Fatal(err)
			}
			verts, fs, err := vs.Read()
			if err != nil {
				t.Fatal(err)
			}
			if fs.p.offset != int64(len(data)) {
				t.Errorf("consumed %d bytes, want %d", fs.p.offset, len(data))
			}
			w := verts[0].Weight
			if w.Type != c.typ {
				t.Errorf("type %v", w.Type)
			}
			if !equalSlice(w.Bones, c.bones) || !equalSlice(w.Weights, c.weights) {
				t.Errorf("got %v %v, want %v %v", w.Bones, w.Weights, c.bones, c.weights)
			}
			if (w.SDEF != nil) != (c.typ == WeightSDEF) {
				t.Errorf("sdef params: %v", w.SDEF)
			}
			if c.typ == WeightSDEF && w.SDEF.R1 != (Vector3{3, 3, 3}) {
				t.Errorf("sdef params: %+v", *w.SDEF)
			}
			if verts[0].EdgeScale != 1.5 {
				t.Errorf("edge scale %v", verts[0].EdgeScale)
			}
		})
	}
}

func equalSlice[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInvalidWeightKind(t *testing.T) {
	data := vertexFixture(0, 5)
	_, err := Parse(bytes.NewReader(data))
	if !errors.Is(err, ErrInvalidWeightKind) {
		t.Fatalf("expected ErrInvalidWeightKind, got %v", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Stage != StageVertices {
		t.Errorf("expected vertices DecodeError, got %v", err)
	}
}

func TestExtUVCount(t *testing.T) {
	for _, n := range []byte{0, 4} {
		data := vertexFixture(n, 0)
		s, err := Open(bytes.NewReader(data))
		if err != nil {
			t.Fatal(err)
		}
		_, vs, _ := s.Read()
		verts, _, err := vs.Read()
		if err != nil {
			t.Fatal(err)
		}
		uvs := verts[0].ExtUVs
		if len(uvs) != int(n) {
			t.Fatalf("uv count %d: got %d vectors", n, len(uvs))
		}
		for i, uv := range uvs {
			if uv != (Vector4{float32(i), 1, 2, 3}) {
				t.Errorf("uv %d: %+v", i, uv)
			}
		}
	}
}

func TestParseTruncated(t *testing.T) {
	data := vertexFixture(0, 2)
	for _, n := range []int{len(data) - 1, len(data) - 10, len(data) - 30} {
		_, err := Parse(bytes.NewReader(data[:n]))
		if !errors.Is(err, ErrTruncated) {
			t.Errorf("%d bytes: expected ErrTruncated, got %v", n, err)
		}
		var de *DecodeError
		if errors.As(err, &de) && de.Offset != int64(n) {
			t.Errorf("%d bytes: error offset %d", n, de.Offset)
		}
	}

	// complete vertex section, missing everything after it
	_, err := Parse(bytes.NewReader(data))
	var de *DecodeError
	if !errors.As(err, &de) || de.Stage != StageFaces || !errors.Is(err, ErrTruncated) {
		t.Errorf("expected truncated faces, got %v", err)
	}
}

func TestParseInvalidEnums(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.empty(3)
	// material with sphere mode 9
	f.i32(1)
	f.text("m")
	f.text("")
	f.f32(1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 0)
	f.u8(0)
	f.f32(0, 0, 0, 1, 1)
	f.u8(0xff, 0xff, 9, 1, 0)
	f.text("")
	f.i32(0)

	_, err := Parse(&f)
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestParseFaceRemainder(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.empty(1)
	f.i32(4)
	f.u8(0, 1, 2, 3)
	f.empty(7)

	core, logs := observer.New(zap.WarnLevel)
	doc, err := Parse(&f, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Faces) != 1 {
		t.Errorf("faces: %d", len(doc.Faces))
	}
	if logs.FilterMessage("face index count is not a multiple of 3").Len() != 1 {
		t.Errorf("expected warning, got %v", logs.All())
	}
}

func TestParseBoneFlags(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.empty(4)
	f.i32(2)

	// bone 0: tail offset, unknown flag 0x4000
	f.text("root")
	f.text("")
	f.f32(0, 1, 0)
	f.u8(0xff)
	f.i32(0)
	f.u16(BoneFlagRotatable | 0x4000)
	f.f32(0, 2, 0)

	// bone 1: tail bone, inherit, fixed axis, local axis, external parent, IK
	f.text("ik")
	f.text("")
	f.f32(1, 1, 1)
	f.u8(0)
	f.i32(1)
	f.u16(BoneFlagTailIndex | BoneFlagInheritRotation | BoneFlagFixedAxis | BoneFlagLocalAxis | BoneFlagExternalParent | BoneFlagEnableIK)
	f.u8(0)        // tail
	f.u8(0)        // inherit parent
	f.f32(0.5)     // inherit weight
	f.f32(1, 0, 0) // fixed axis
	f.f32(1, 0, 0, 0, 0, 1)
	f.i32(42)
	f.u8(0)
	f.i32(10)
	f.f32(0.25)
	f.i32(2)
	f.u8(0, 0)
	f.u8(0, 1)
	f.f32(-1, 0, 0, 1, 0, 0)

	f.empty(4)

	core, logs := observer.New(zap.WarnLevel)
	doc, err := Parse(&f, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatal(err)
	}
	root, ik := doc.Bones[0], doc.Bones[1]
	if root.ParentID != -1 || root.TailID != -1 || root.TailPos != (Vector3{Y: 2}) {
		t.Errorf("root: %+v", root)
	}
	if logs.FilterMessage("unsupported bone flags").Len() != 1 {
		t.Errorf("expected warning, got %v", logs.All())
	}
	if ik.TailID != 0 || ik.InheritParentID != 0 || ik.InheritParentInfluence != 0.5 {
		t.Errorf("ik: %+v", ik)
	}
	if ik.FixedAxis != (Vector3{X: 1}) || ik.LocalAxisZ != (Vector3{Z: 1}) || ik.ExternalParentKey != 42 {
		t.Errorf("ik axes: %+v", ik)
	}
	if ik.IK.Loop != 10 || ik.IK.LimitRad != 0.25 || len(ik.IK.Links) != 2 {
		t.Fatalf("ik: %+v", ik.IK)
	}
	if ik.IK.Links[0].HasLimit || !ik.IK.Links[1].HasLimit || ik.IK.Links[1].LimitMin != (Vector3{X: -1}) {
		t.Errorf("links: %+v %+v", ik.IK.Links[0], ik.IK.Links[1])
	}
}

func TestParseSoftBodies(t *testing.T) {
	var f fixture
	f.header(Version21, 1, 0, 2, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.empty(9)
	f.i32(1)
	f.text("skirt")
	f.text("")
	f.u8(1)    // rope
	f.u8(0xff) // material
	f.u8(3)
	f.u16(0xfffe)
	f.u8(0x5)
	f.i32(2, 0)
	f.f32(1, 0.5)
	f.i32(1)
	for i := 0; i < 12+6; i++ {
		f.f32(float32(i))
	}
	f.i32(1, 2, 3, 4)
	f.f32(1, 1, 1)
	f.i32(1)
	f.u8(0xff)
	f.u16(300)
	f.u8(1)
	f.i32(2)
	f.u16(65535)
	f.u16(0)

	doc, err := Parse(&f)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.SoftBodies) != 1 {
		t.Fatalf("soft bodies: %d", len(doc.SoftBodies))
	}
	b := doc.SoftBodies[0]
	if b.Name != "skirt" || b.Shape != SoftBodyShapeRope || b.MaterialID != -1 || b.NoCollideMask != 0xfffe {
		t.Errorf("soft body: %+v", b)
	}
	if b.Config[11] != 11 || b.Cluster[5] != 17 || b.Iteration != [4]int32{1, 2, 3, 4} {
		t.Errorf("params: %v %v %v", b.Config, b.Cluster, b.Iteration)
	}
	if len(b.Anchors) != 1 || *b.Anchors[0] != (SoftBodyAnchor{RigidID: -1, VertexID: 300, NearMode: 1}) {
		t.Errorf("anchors: %v", b.Anchors)
	}
	if !equalSlice(b.PinVertexs, []int{65535, 0}) {
		t.Errorf("pins: %v", b.PinVertexs)
	}
}

func TestParseNegativeCount(t *testing.T) {
	var f fixture
	f.header(Version20, 1, 0, 1, 1, 1, 1, 1, 1)
	f.modelInfo("")
	f.i32(-1)
	_, err := Parse(&f)
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}
