package mmd

import (
	"fmt"
	"math"
)

// indexRange tracks the smallest and largest index that will be written
// for one attribute.
type indexRange struct {
	lo, hi int
}

func countRange(n int) indexRange {
	if n == 0 {
		return indexRange{}
	}
	return indexRange{hi: n - 1}
}

func (r *indexRange) add(v int) {
	if v < r.lo {
		r.lo = v
	}
	if v > r.hi {
		r.hi = v
	}
}

func (r *indexRange) signedSize() (byte, error) {
	switch {
	case r.lo >= math.MinInt8 && r.hi <= math.MaxInt8:
		return 1, nil
	case r.lo >= math.MinInt16 && r.hi <= math.MaxInt16:
		return 2, nil
	case r.lo >= math.MinInt32 && r.hi <= math.MaxInt32:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: index range [%d, %d]", ErrTooLarge, r.lo, r.hi)
}

// vertex indices are unsigned at widths 1 and 2.
func (r *indexRange) unsignedSize() (byte, error) {
	switch {
	case r.lo >= 0 && r.hi <= math.MaxUint8:
		return 1, nil
	case r.lo >= 0 && r.hi <= math.MaxUint16:
		return 2, nil
	case r.lo >= math.MinInt32 && r.hi <= math.MaxInt32:
		return 4, nil
	}
	return 0, fmt.Errorf("%w: vertex index range [%d, %d]", ErrTooLarge, r.lo, r.hi)
}

// DeriveFormatConfig computes the header PMXWriter emits for doc: the
// narrowest index widths that hold every count and every reference, the
// number of additional UVs, and the lowest version that can carry the data.
func DeriveFormatConfig(doc *Document, enc TextEncoding) (*FormatConfig, error) {
	if enc != UTF16LE && enc != UTF8 {
		return nil, fmt.Errorf("%w: text encoding %d", ErrEncoding, enc)
	}
	if err := checkElements(doc); err != nil {
		return nil, err
	}
	cfg := &FormatConfig{Version: Version20, Encoding: enc}

	vert := countRange(len(doc.Vertexes))
	tex := countRange(len(doc.Textures))
	mat := countRange(len(doc.Materials))
	bone := countRange(len(doc.Bones))
	morph := countRange(len(doc.Morphs))
	rigid := countRange(len(doc.RigidBodies))

	for _, v := range doc.Vertexes {
		if len(v.ExtUVs) > cfg.ExtUVCount {
			cfg.ExtUVCount = len(v.ExtUVs)
		}
		if v.Weight.Type == WeightQDEF {
			cfg.Version = Version21
		}
		for _, b := range v.Weight.Bones {
			bone.add(b)
		}
	}
	if cfg.ExtUVCount > 4 {
		return nil, fmt.Errorf("%w: %d additional uvs", ErrInvalidData, cfg.ExtUVCount)
	}

	for _, f := range doc.Faces {
		for _, v := range f.Verts {
			vert.add(v)
		}
	}

	for _, m := range doc.Materials {
		tex.add(m.TextureID)
		tex.add(m.EnvID)
		if m.ToonType == ToonModeSeparate {
			tex.add(m.Toon)
		}
	}

	for _, b := range doc.Bones {
		bone.add(b.ParentID)
		if b.Flags&BoneFlagTailIndex != 0 {
			bone.add(b.TailID)
		}
		if b.Flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0 {
			bone.add(b.InheritParentID)
		}
		if b.Flags&BoneFlagEnableIK != 0 {
			bone.add(b.IK.TargetID)
			for _, l := range b.IK.Links {
				bone.add(l.TargetID)
			}
		}
	}

	for _, m := range doc.Morphs {
		switch m.MorphType {
		case MorphTypeFlip, MorphTypeImpulse:
			cfg.Version = Version21
		}
		for _, o := range m.Group {
			morph.add(o.Target)
		}
		for _, o := range m.Flip {
			morph.add(o.Target)
		}
		for _, o := range m.Vertex {
			vert.add(o.Target)
		}
		for _, o := range m.UV {
			vert.add(o.Target)
		}
		for _, o := range m.Bone {
			bone.add(o.Target)
		}
		for _, o := range m.Material {
			mat.add(o.Target)
		}
		for _, o := range m.Impulse {
			rigid.add(o.Target)
		}
	}

	for _, f := range doc.Frames {
		for _, el := range f.Elements {
			switch el.Target {
			case FrameTargetBone:
				bone.add(el.Index)
			case FrameTargetMorph:
				morph.add(el.Index)
			}
		}
	}

	for _, r := range doc.RigidBodies {
		bone.add(r.BoneID)
	}

	for _, j := range doc.Joints {
		if j.Type != JointTypeSpring6DOF {
			cfg.Version = Version21
		}
		rigid.add(j.RigidA)
		rigid.add(j.RigidB)
	}

	if len(doc.SoftBodies) > 0 {
		cfg.Version = Version21
	}
	for _, b := range doc.SoftBodies {
		mat.add(b.MaterialID)
		for _, a := range b.Anchors {
			rigid.add(a.RigidID)
			vert.add(a.VertexID)
		}
		for _, v := range b.PinVertexs {
			vert.add(v)
		}
	}

	var err error
	if cfg.VertexIndexSize, err = vert.unsignedSize(); err != nil {
		return nil, err
	}
	sizes := []struct {
		dst *byte
		r   *indexRange
	}{
		{&cfg.TextureIndexSize, &tex},
		{&cfg.MaterialIndexSize, &mat},
		{&cfg.BoneIndexSize, &bone},
		{&cfg.MorphIndexSize, &morph},
		{&cfg.RigidIndexSize, &rigid},
	}
	for _, s := range sizes {
		if *s.dst, err = s.r.signedSize(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func nilIndex[T any](s []*T) int {
	for i, v := range s {
		if v == nil {
			return i
		}
	}
	return -1
}

// checkElements rejects nil records anywhere in doc.
func checkElements(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidData)
	}
	sections := []struct {
		stage Stage
		i     int
	}{
		{StageVertices, nilIndex(doc.Vertexes)},
		{StageFaces, nilIndex(doc.Faces)},
		{StageMaterials, nilIndex(doc.Materials)},
		{StageBones, nilIndex(doc.Bones)},
		{StageMorphs, nilIndex(doc.Morphs)},
		{StageFrames, nilIndex(doc.Frames)},
		{StageRigidBodies, nilIndex(doc.RigidBodies)},
		{StageJoints, nilIndex(doc.Joints)},
		{StageSoftBodies, nilIndex(doc.SoftBodies)},
	}
	for _, s := range sections {
		if s.i >= 0 {
			return fmt.Errorf("%w: %v[%d] is nil", ErrInvalidData, s.stage, s.i)
		}
	}

	for i, b := range doc.Bones {
		if j := nilIndex(b.IK.Links); j >= 0 {
			return fmt.Errorf("%w: bones[%d] ik link %d is nil", ErrInvalidData, i, j)
		}
	}
	for i, m := range doc.Morphs {
		offsets := []int{
			nilIndex(m.Group), nilIndex(m.Vertex), nilIndex(m.Bone), nilIndex(m.UV),
			nilIndex(m.Material), nilIndex(m.Flip), nilIndex(m.Impulse),
		}
		for _, j := range offsets {
			if j >= 0 {
				return fmt.Errorf("%w: morphs[%d] offset %d is nil", ErrInvalidData, i, j)
			}
		}
	}
	for i, f := range doc.Frames {
		if j := nilIndex(f.Elements); j >= 0 {
			return fmt.Errorf("%w: frames[%d] element %d is nil", ErrInvalidData, i, j)
		}
	}
	for i, b := range doc.SoftBodies {
		if j := nilIndex(b.Anchors); j >= 0 {
			return fmt.Errorf("%w: soft bodies[%d] anchor %d is nil", ErrInvalidData, i, j)
		}
	}
	return nil
}
