// Package toolkit は学習アルゴリズムが共有する部品を提供します。
// 活性化関数、コスト関数、正則化、ガウス過程用のカーネルを含みます。
package toolkit
