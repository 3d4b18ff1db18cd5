// Package preprocessing は特徴量のスケーリングを提供します。
//
// どちらのスケーラーも列ごとのアフィン変換 x' = (x − shift) / scale + offset で、
// 学習済みパラメータは ModelWeights としてエクスポートできます。
package preprocessing
