package mmd

import (
	"bufio"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// see also:
// https://github.com/binzume/mikumikudroid/blob/oculus/src/jp/gauzau/MikuMikuDroid/PMXParser.java
// https://gist.github.com/felixjones/f8a06bd48f9da9a4539f

// PMXParser owns the input cursor and the format config of one file.
type PMXParser struct {
	baseParser
	cfg   *FormatConfig
	sizes []byte
	stage Stage
	log   *zap.Logger
}

// upper bound for preallocation, counts come from the file and may be bogus.
const maxPrealloc = 1 << 16

// Open reads the header from r and returns the first stage of the pipeline.
func Open(r io.Reader, opts ...Option) (*ModelInfoStage, error) {
	o := newOptions(opts)
	p := &PMXParser{baseParser: baseParser{r: r}, stage: StageHeader, log: o.logger}
	cfg, err := readHeader(&p.baseParser)
	if err != nil {
		p.stage = stageFailed
		return nil, &DecodeError{Stage: StageHeader, Offset: p.offset, Err: err}
	}
	p.cfg = cfg
	p.sizes = cfg.info()
	p.stage = StageModelInfo
	p.log.Debug("pmx header",
		zap.Float32("version", cfg.Version),
		zap.Stringer("encoding", cfg.Encoding),
		zap.Int("ext_uv", cfg.ExtUVCount),
		zap.Binary("index_sizes", p.sizes[AttrVertIndexSz:]))
	return &ModelInfoStage{p}, nil
}

// Parse decodes a whole .pmx document. It returns either a complete document
// or an error, never a partially filled one.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	s, err := Open(bufio.NewReader(r), opts...)
	if err != nil {
		return nil, err
	}
	cfg := s.Header()
	doc := &Document{Header: &cfg}

	info, vs, err := s.Read()
	if err != nil {
		return nil, err
	}
	doc.ModelInfo = *info
	var fs *FacesStage
	if doc.Vertexes, fs, err = vs.Read(); err != nil {
		return nil, err
	}
	var ts *TexturesStage
	if doc.Faces, ts, err = fs.Read(); err != nil {
		return nil, err
	}
	var ms *MaterialsStage
	if doc.Textures, ms, err = ts.Read(); err != nil {
		return nil, err
	}
	var bs *BonesStage
	if doc.Materials, bs, err = ms.Read(); err != nil {
		return nil, err
	}
	var mps *MorphsStage
	if doc.Bones, mps, err = bs.Read(); err != nil {
		return nil, err
	}
	var frs *FramesStage
	if doc.Morphs, frs, err = mps.Read(); err != nil {
		return nil, err
	}
	var rs *RigidBodiesStage
	if doc.Frames, rs, err = frs.Read(); err != nil {
		return nil, err
	}
	var js *JointsStage
	if doc.RigidBodies, js, err = rs.Read(); err != nil {
		return nil, err
	}
	var sbs *SoftBodiesStage
	if doc.Joints, sbs, err = js.Read(); err != nil {
		return nil, err
	}
	if sbs != nil {
		if doc.SoftBodies, err = sbs.Read(); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// readList reads an i32 count followed by that many records.
func readList[T any](p *PMXParser, read func() T) []T {
	n := p.readCount()
	list := make([]T, 0, min(n, maxPrealloc))
	for i := 0; i < n && p.err == nil; i++ {
		list = append(list, read())
	}
	return list
}

func (p *PMXParser) readIndex(attrTyp int) int {
	return p.readVInt(p.sizes[attrTyp])
}

func (p *PMXParser) readVertexIndex() int {
	return p.readVUInt(p.cfg.VertexIndexSize)
}

func (p *PMXParser) readString() string {
	return p.readText(p.cfg.Encoding)
}

func (p *PMXParser) readModelInfo() *ModelInfo {
	return &ModelInfo{
		Name:      p.readString(),
		NameEn:    p.readString(),
		Comment:   p.readString(),
		CommentEn: p.readString(),
	}
}

func (p *PMXParser) readVertex() *Vertex {
	var v Vertex
	v.Pos = p.readVector3()
	v.Normal = p.readVector3()
	v.UV = p.readVector2()
	if n := p.cfg.ExtUVCount; n > 0 {
		v.ExtUVs = make([]Vector4, n)
		for i := range v.ExtUVs {
			v.ExtUVs[i] = p.readVector4()
		}
	}

	w := &v.Weight
	w.Type = WeightType(p.readUint8())
	if p.err != nil {
		return &v
	}
	n := w.Type.BoneCount()
	if n == 0 {
		p.fail(fmt.Errorf("%w: %d", ErrInvalidWeightKind, w.Type))
		return &v
	}
	w.Bones = make([]int, n)
	for i := range w.Bones {
		w.Bones[i] = p.readIndex(AttrBoneIndexSz)
	}
	switch w.Type {
	case WeightBDEF1:
		w.Weights = []float32{1}
	case WeightBDEF2:
		wt := p.readFloat()
		w.Weights = []float32{wt, 1 - wt}
	case WeightSDEF:
		wt := p.readFloat()
		w.Weights = []float32{wt, 1 - wt}
		w.SDEF = &SDEFParams{
			C:  p.readVector3(),
			R0: p.readVector3(),
			R1: p.readVector3(),
		}
	case WeightBDEF4, WeightQDEF:
		w.Weights = []float32{p.readFloat(), p.readFloat(), p.readFloat(), p.readFloat()}
	}
	v.EdgeScale = p.readFloat()
	return &v
}

func (p *PMXParser) readFaces() []*Face {
	n := p.readCount()
	faces := make([]*Face, 0, min(n/3, maxPrealloc))
	for i := 0; i < n/3 && p.err == nil; i++ {
		var f Face
		f.Verts[0] = p.readVertexIndex()
		f.Verts[1] = p.readVertexIndex()
		f.Verts[2] = p.readVertexIndex()
		faces = append(faces, &f)
	}
	if rest := n % 3; rest != 0 && p.err == nil {
		p.log.Warn("face index count is not a multiple of 3", zap.Int("count", n))
		for i := 0; i < rest; i++ {
			p.readVertexIndex()
		}
	}
	return faces
}

func (p *PMXParser) readMaterial() *Material {
	var m Material
	m.Name = p.readString()
	m.NameEn = p.readString()
	m.Color = p.readVector4()
	m.Specular = p.readVector3()
	m.Specularity = p.readFloat()
	m.AColor = p.readVector3()
	m.Flags = p.readUint8()
	m.EdgeColor = p.readVector4()
	m.EdgeScale = p.readFloat()
	m.TextureID = p.readIndex(AttrTexIndexSz)
	m.EnvID = p.readIndex(AttrTexIndexSz)
	m.EnvMode = SphereMode(p.readUint8())
	if p.err == nil && !m.EnvMode.valid() {
		p.fail(fmt.Errorf("%w: sphere mode %d", ErrInvalidData, m.EnvMode))
		return &m
	}
	m.ToonType = ToonMode(p.readUint8())
	switch {
	case p.err != nil:
		return &m
	case m.ToonType == ToonModeSeparate:
		m.Toon = p.readIndex(AttrTexIndexSz)
	case m.ToonType == ToonModeShared:
		m.Toon = int(p.readUint8())
	default:
		p.fail(fmt.Errorf("%w: toon mode %d", ErrInvalidData, m.ToonType))
		return &m
	}
	m.Memo = p.readString()
	m.Count = p.readInt()
	return &m
}

func (p *PMXParser) readBone() *Bone {
	var b Bone
	b.Name = p.readString()
	b.NameEn = p.readString()
	b.Pos = p.readVector3()
	b.ParentID = p.readIndex(AttrBoneIndexSz)
	b.Layer = p.readInt()
	b.Flags = p.readUint16()

	if b.Flags & ^BoneFlagAll != 0 {
		p.log.Warn("unsupported bone flags", zap.String("bone", b.Name), zap.Uint16("flags", b.Flags & ^BoneFlagAll))
	}

	if b.Flags&BoneFlagTailIndex != 0 {
		b.TailID = p.readIndex(AttrBoneIndexSz)
	} else {
		b.TailID = -1
		b.TailPos = p.readVector3()
	}

	if b.Flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0 {
		b.InheritParentID = p.readIndex(AttrBoneIndexSz)
		b.InheritParentInfluence = p.readFloat()
	}

	if b.Flags&BoneFlagFixedAxis != 0 {
		b.FixedAxis = p.readVector3()
	}

	if b.Flags&BoneFlagLocalAxis != 0 {
		b.LocalAxisX = p.readVector3()
		b.LocalAxisZ = p.readVector3()
	}

	if b.Flags&BoneFlagExternalParent != 0 {
		b.ExternalParentKey = p.readInt()
	}

	if b.Flags&BoneFlagEnableIK != 0 {
		b.IK.TargetID = p.readIndex(AttrBoneIndexSz)
		b.IK.Loop = p.readInt()
		b.IK.LimitRad = p.readFloat()
		b.IK.Links = readList(p, func() *Link {
			var l Link
			l.TargetID = p.readIndex(AttrBoneIndexSz)
			l.HasLimit = p.readUint8() != 0
			if l.HasLimit {
				l.LimitMin = p.readVector3()
				l.LimitMax = p.readVector3()
			}
			return &l
		})
	}

	return &b
}

func (p *PMXParser) readMorph() *Morph {
	var m Morph
	m.Name = p.readString()
	m.NameEn = p.readString()
	m.PanelType = p.readUint8()
	m.MorphType = MorphType(p.readUint8())

	n := p.readCount()
	if p.err != nil {
		return &m
	}
	if !m.MorphType.valid() {
		p.fail(fmt.Errorf("%w: morph type %d", ErrInvalidData, m.MorphType))
		return &m
	}

	for i := 0; i < n && p.err == nil; i++ {
		switch m.MorphType {
		case MorphTypeGroup:
			m.Group = append(m.Group, &MorphGroup{
				Target: p.readIndex(AttrMorphIndexSz),
				Weight: p.readFloat(),
			})
		case MorphTypeVertex:
			var v MorphVertex
			v.Target = p.readVertexIndex()
			v.Offset = p.readVector3()
			m.Vertex = append(m.Vertex, &v)
		case MorphTypeBone:
			var v MorphBone
			v.Target = p.readIndex(AttrBoneIndexSz)
			v.Translation = p.readVector3()
			v.Rotation = p.readVector4()
			m.Bone = append(m.Bone, &v)
		case MorphTypeUV, MorphTypeExtUV1, MorphTypeExtUV2, MorphTypeExtUV3, MorphTypeExtUV4:
			var v MorphUV
			v.Target = p.readVertexIndex()
			v.Value = p.readVector4()
			m.UV = append(m.UV, &v)
		case MorphTypeMaterial:
			var v MorphMaterial
			v.Target = p.readIndex(AttrMatIndexSz)
			v.Flags = p.readUint8()
			v.Diffuse = p.readVector4()
			v.Specular = p.readVector3()
			v.Specularity = p.readFloat()
			v.Ambient = p.readVector3()
			v.EdgeColor = p.readVector4()
			v.EdgeSize = p.readFloat()
			v.TextureTint = p.readVector4()
			v.EnvironmentTint = p.readVector4()
			v.ToonTint = p.readVector4()
			m.Material = append(m.Material, &v)
		case MorphTypeFlip:
			m.Flip = append(m.Flip, &MorphGroup{
				Target: p.readIndex(AttrMorphIndexSz),
				Weight: p.readFloat(),
			})
		case MorphTypeImpulse:
			var v MorphImpulse
			v.Target = p.readIndex(AttrRBIndexSz)
			v.Local = p.readUint8() != 0
			v.Velocity = p.readVector3()
			v.Torque = p.readVector3()
			m.Impulse = append(m.Impulse, &v)
		}
	}

	return &m
}

func (p *PMXParser) readFrame() *Frame {
	var f Frame
	f.Name = p.readString()
	f.NameEn = p.readString()
	f.Special = p.readUint8() != 0
	f.Elements = readList(p, func() *FrameElement {
		var e FrameElement
		e.Target = p.readUint8()
		switch {
		case p.err != nil:
		case e.Target == FrameTargetBone:
			e.Index = p.readIndex(AttrBoneIndexSz)
		case e.Target == FrameTargetMorph:
			e.Index = p.readIndex(AttrMorphIndexSz)
		default:
			p.fail(fmt.Errorf("%w: frame target %d", ErrInvalidData, e.Target))
		}
		return &e
	})
	return &f
}

func (p *PMXParser) readRigidBody() *RigidBody {
	var r RigidBody
	r.Name = p.readString()
	r.NameEn = p.readString()
	r.BoneID = p.readIndex(AttrBoneIndexSz)
	r.Group = p.readUint8()
	r.NoCollideMask = p.readUint16()
	r.Shape = RigidShape(p.readUint8())
	if p.err == nil && !r.Shape.valid() {
		p.fail(fmt.Errorf("%w: rigid body shape %d", ErrInvalidData, r.Shape))
		return &r
	}
	r.Size = p.readVector3()
	r.Pos = p.readVector3()
	r.Rot = p.readVector3()
	r.Mass = p.readFloat()
	r.LinearDamping = p.readFloat()
	r.AngularDamping = p.readFloat()
	r.Restitution = p.readFloat()
	r.Friction = p.readFloat()
	r.Mode = RigidMode(p.readUint8())
	if p.err == nil && !r.Mode.valid() {
		p.fail(fmt.Errorf("%w: rigid body mode %d", ErrInvalidData, r.Mode))
	}
	return &r
}

func (p *PMXParser) readJoint() *Joint {
	var j Joint
	j.Name = p.readString()
	j.NameEn = p.readString()
	j.Type = JointType(p.readUint8())
	if p.err == nil && !j.Type.valid() {
		p.fail(fmt.Errorf("%w: joint type %d", ErrInvalidData, j.Type))
		return &j
	}
	j.RigidA = p.readIndex(AttrRBIndexSz)
	j.RigidB = p.readIndex(AttrRBIndexSz)
	j.Pos = p.readVector3()
	j.Rot = p.readVector3()
	j.MoveLimitMin = p.readVector3()
	j.MoveLimitMax = p.readVector3()
	j.RotLimitMin = p.readVector3()
	j.RotLimitMax = p.readVector3()
	j.SpringMove = p.readVector3()
	j.SpringRot = p.readVector3()
	return &j
}

func (p *PMXParser) readSoftBody() *SoftBody {
	var b SoftBody
	b.Name = p.readString()
	b.NameEn = p.readString()
	b.Shape = SoftBodyShape(p.readUint8())
	if p.err == nil && !b.Shape.valid() {
		p.fail(fmt.Errorf("%w: soft body shape %d", ErrInvalidData, b.Shape))
		return &b
	}
	b.MaterialID = p.readIndex(AttrMatIndexSz)
	b.Group = p.readUint8()
	b.NoCollideMask = p.readUint16()
	b.Flags = p.readUint8()
	b.BendingDistance = p.readInt()
	b.Clusters = p.readInt()
	b.Mass = p.readFloat()
	b.Margin = p.readFloat()
	b.AeroModel = p.readInt()
	for i := range b.Config {
		b.Config[i] = p.readFloat()
	}
	for i := range b.Cluster {
		b.Cluster[i] = p.readFloat()
	}
	for i := range b.Iteration {
		b.Iteration[i] = p.readInt32()
	}
	for i := range b.Material {
		b.Material[i] = p.readFloat()
	}
	b.Anchors = readList(p, func() *SoftBodyAnchor {
		return &SoftBodyAnchor{
			RigidID:  p.readIndex(AttrRBIndexSz),
			VertexID: p.readVertexIndex(),
			NearMode: p.readUint8(),
		}
	})
	b.PinVertexs = readList(p, p.readVertexIndex)
	return &b
}
